package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clearinghouse/internal/keyring/models"
	"clearinghouse/pkg/platform/sentinel"
)

// PostgresStore persists keyring entries in the keyring_entries table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Put inserts the entry, or updates its schema when the stored entry has the
// same key. A different key is sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Put(ctx context.Context, e *models.Entry) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO keyring_entries (pid, doc_type_id, schema, key, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pid, doc_type_id) DO UPDATE SET schema = EXCLUDED.schema
		WHERE keyring_entries.key = EXCLUDED.key`,
		e.Pid, e.DocTypeID, e.Schema, e.Key, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store keyring entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store keyring entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("keyring entry %s/%s: %w", e.Pid, e.DocTypeID, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, pid, docTypeID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM keyring_entries WHERE pid = $1 AND doc_type_id = $2`, pid, docTypeID,
	); err != nil {
		return fmt.Errorf("delete keyring entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, pid, docTypeID string) (*models.Entry, error) {
	e := &models.Entry{Pid: pid, DocTypeID: docTypeID}
	err := s.db.QueryRowContext(ctx, `
		SELECT schema, key, created_at FROM keyring_entries
		WHERE pid = $1 AND doc_type_id = $2`, pid, docTypeID,
	).Scan(&e.Schema, &e.Key, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("keyring entry %s/%s: %w", pid, docTypeID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load keyring entry: %w", err)
	}
	return e, nil
}
