package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"clearinghouse/internal/document/models"
	"clearinghouse/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists documents in the documents table.
type PostgresStore struct {
	q querier
}

// NewPostgres reads and writes through the pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{q: pool}
}

// NewPostgresTx binds the store to an open transaction.
func NewPostgresTx(tx pgx.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

const selectColumns = `document_id, pid, seq, doc_type_id, received_at, hash_chain_prev, hash, header, sealed_payload, key_scope, key_id`

func (s *PostgresStore) Insert(ctx context.Context, d *models.Document) error {
	header, err := json.Marshal(d.Header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO documents (`+selectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.DocumentID, d.Pid, d.Seq, d.DocTypeID, d.ReceivedAt,
		d.HashChainPrev, d.Hash, header, d.SealedPayload, d.KeyScope, d.KeyID,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("document %s: %w", d.DocumentID, sentinel.ErrAlreadyUsed)
	}
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Head(ctx context.Context, pid string) (*models.Document, error) {
	row := s.q.QueryRow(ctx, `SELECT `+selectColumns+` FROM documents
		WHERE pid = $1 ORDER BY seq DESC LIMIT 1`, pid)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("head of %q: %w", pid, sentinel.ErrNotFound)
	}
	return d, err
}

func (s *PostgresStore) Get(ctx context.Context, pid, documentID string) (*models.Document, error) {
	row := s.q.QueryRow(ctx, `SELECT `+selectColumns+` FROM documents
		WHERE pid = $1 AND document_id = $2`, pid, documentID)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s under %q: %w", documentID, pid, sentinel.ErrNotFound)
	}
	return d, err
}

// List returns pid's documents ordered by seq.
func (s *PostgresStore) List(ctx context.Context, pid string) ([]*models.Document, error) {
	rows, err := s.q.Query(ctx, `SELECT `+selectColumns+` FROM documents
		WHERE pid = $1 ORDER BY seq`, pid)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []*models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// LockPid takes the transaction-scoped advisory lock serializing appends
// under pid. Only meaningful on a store bound to a transaction.
func (s *PostgresStore) LockPid(ctx context.Context, pid string) error {
	if _, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, pid); err != nil {
		return fmt.Errorf("lock pid: %w", err)
	}
	return nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var (
		d      models.Document
		header []byte
	)
	err := row.Scan(&d.DocumentID, &d.Pid, &d.Seq, &d.DocTypeID, &d.ReceivedAt,
		&d.HashChainPrev, &d.Hash, &header, &d.SealedPayload, &d.KeyScope, &d.KeyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if err := json.Unmarshal(header, &d.Header); err != nil {
		return nil, fmt.Errorf("decode header of %s: %w", d.DocumentID, sentinel.ErrIntegrity)
	}
	return &d, nil
}
