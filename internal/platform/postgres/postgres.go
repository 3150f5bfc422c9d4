// Package postgres opens the clearing house database handles and owns the
// schema. Processes and keyring entries are served through database/sql
// (lib/pq); the document log uses a pgx pool for its per-pid transactional
// appends.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// Schema is applied idempotently at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS processes (
	pid        TEXT PRIMARY KEY,
	owners     TEXT[] NOT NULL CHECK (cardinality(owners) > 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS documents (
	pid             TEXT NOT NULL,
	seq             BIGINT NOT NULL,
	document_id     TEXT NOT NULL UNIQUE,
	doc_type_id     TEXT NOT NULL,
	received_at     TIMESTAMPTZ NOT NULL,
	hash_chain_prev BYTEA NOT NULL,
	hash            BYTEA NOT NULL,
	header          JSONB NOT NULL,
	sealed_payload  BYTEA,
	key_scope       TEXT NOT NULL,
	key_id          TEXT NOT NULL,
	PRIMARY KEY (pid, seq)
);

CREATE INDEX IF NOT EXISTS idx_documents_received ON documents(pid, received_at);

CREATE TABLE IF NOT EXISTS keyring_entries (
	pid         TEXT NOT NULL,
	doc_type_id TEXT NOT NULL,
	schema      TEXT NOT NULL DEFAULT '',
	key         BYTEA NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (pid, doc_type_id)
);
`

// OpenDB opens and pings a lib/pq handle.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// OpenPool opens and pings a pgx pool.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging pool: %w", err)
	}
	return pool, nil
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
