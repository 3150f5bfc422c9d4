package service

import (
	"context"
	"time"

	dErrors "clearinghouse/pkg/domain-errors"
)

// StoreTx is the write boundary of the log. RunInTx runs fn with exclusive
// write access to pid's log; calls for distinct pids may run in parallel.
// Implementations may wrap a database transaction or, in memory, a lock.
type StoreTx interface {
	RunInTx(ctx context.Context, pid string, fn func(store Store) error) error
}

// Appends are spread over this many locks by hash of the pid; pids that
// share a shard serialize with each other.
const numShards = 128

const defaultTxTimeout = 5 * time.Second

// ShardedTx serializes appends per pid for in-memory stores.
// Each shard is a one-slot channel so that waiting for it respects ctx.
type ShardedTx struct {
	shards  [numShards]chan struct{}
	store   Store
	timeout time.Duration
}

// NewShardedTx wraps store. A zero timeout uses the default.
func NewShardedTx(store Store, timeout time.Duration) *ShardedTx {
	t := &ShardedTx{store: store, timeout: timeout}
	for i := range t.shards {
		t.shards[i] = make(chan struct{}, 1)
	}
	return t
}

func (t *ShardedTx) RunInTx(ctx context.Context, pid string, fn func(store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.shards[hashPid(pid)%numShards]
	select {
	case shard <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transaction aborted: waiting for pid lock")
	}
	defer func() { <-shard }()

	// select picks randomly when both are ready.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(t.store)
}

// hashPid is FNV-1a.
func hashPid(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
