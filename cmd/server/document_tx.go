package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	documentservice "clearinghouse/internal/document/service"
	documentstore "clearinghouse/internal/document/store"
	dErrors "clearinghouse/pkg/domain-errors"
)

const defaultDocumentTxTimeout = 5 * time.Second

// documentPostgresTx runs each append in its own transaction holding the
// advisory lock for the pid, so concurrent appends under one pid are
// serialized across connections and instances sharing the database.
type documentPostgresTx struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func newDocumentPostgresTx(pool *pgxpool.Pool, timeout time.Duration) *documentPostgresTx {
	return &documentPostgresTx{pool: pool, timeout: timeout}
}

func (t *documentPostgresTx) RunInTx(ctx context.Context, pid string, fn func(store documentservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultDocumentTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	store := documentstore.NewPostgresTx(tx)
	if err := store.LockPid(ctx, pid); err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: waiting for pid lock")
		}
		return err
	}
	if err := fn(store); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
