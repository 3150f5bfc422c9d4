// Package service is the Process Store: the authoritative home of
// pid → owners.
package service

import (
	"context"
	"errors"
	"log/slog"

	"clearinghouse/internal/process/models"
	dErrors "clearinghouse/pkg/domain-errors"
	"clearinghouse/pkg/platform/sentinel"
	"clearinghouse/pkg/requestcontext"
)

// Store persists processes.
type Store interface {
	Create(ctx context.Context, p *models.Process) error
	FindByPid(ctx context.Context, pid string) (*models.Process, error)
}

// Service creates processes and answers ownership questions.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers pid with owners. It fails with CodeConflict when the pid
// already exists.
func (s *Service) Create(ctx context.Context, pid string, owners []string) (*models.Process, error) {
	p, err := models.NewProcess(pid, owners, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid process")
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "process already exists")
		}
		return nil, wrapStoreErr(err, "failed to create process")
	}
	s.logger.InfoContext(ctx, "process created",
		"request_id", requestcontext.RequestID(ctx),
		"pid", pid,
		"owners", len(p.Owners),
	)
	return p, nil
}

// Owners returns the owner list of pid, or CodeNotFound.
func (s *Service) Owners(ctx context.Context, pid string) ([]string, error) {
	p, err := s.find(ctx, pid)
	if err != nil {
		return nil, err
	}
	return p.Owners, nil
}

// IsOwner reports whether subject owns pid. An unknown pid is an error with
// CodeNotFound so callers can tell the cases apart internally.
func (s *Service) IsOwner(ctx context.Context, pid, subject string) (bool, error) {
	p, err := s.find(ctx, pid)
	if err != nil {
		return false, err
	}
	return p.IsOwner(subject), nil
}

// Ensure returns pid's process, creating it with subject as sole owner when
// it does not exist yet. created reports whether this call created it.
func (s *Service) Ensure(ctx context.Context, pid, subject string) (p *models.Process, created bool, err error) {
	p, err = s.find(ctx, pid)
	if err == nil {
		return p, false, nil
	}
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, false, err
	}

	p, err = s.Create(ctx, pid, []string{subject})
	switch {
	case err == nil:
		return p, true, nil
	case dErrors.HasCode(err, dErrors.CodeConflict):
		// Lost a creation race; the winner's owners apply.
		p, err = s.find(ctx, pid)
		return p, false, err
	default:
		return nil, false, err
	}
}

func (s *Service) find(ctx context.Context, pid string) (*models.Process, error) {
	p, err := s.store.FindByPid(ctx, pid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "process not found")
		}
		return nil, wrapStoreErr(err, "failed to load process")
	}
	return p, nil
}

func wrapStoreErr(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

