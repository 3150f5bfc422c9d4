package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"clearinghouse/internal/process/models"
	"clearinghouse/pkg/platform/sentinel"
)

// PostgresStore persists processes in the processes table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts p; a taken pid yields sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, p *models.Process) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO processes (pid, owners, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (pid) DO NOTHING`,
		p.Pid, pq.Array(p.Owners), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert process: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert process: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("process %q: %w", p.Pid, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) FindByPid(ctx context.Context, pid string) (*models.Process, error) {
	p := &models.Process{Pid: pid}
	err := s.db.QueryRowContext(ctx,
		`SELECT owners, created_at FROM processes WHERE pid = $1`, pid,
	).Scan(pq.Array(&p.Owners), &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("process %q: %w", pid, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find process: %w", err)
	}
	return p, nil
}
