// Package service is the Keyring Service: it admits document types per pid
// and holds the keys their payloads are sealed with.
package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/hkdf"

	"clearinghouse/internal/keyring/metrics"
	"clearinghouse/internal/keyring/models"
	dErrors "clearinghouse/pkg/domain-errors"
	"clearinghouse/pkg/platform/sentinel"
	"clearinghouse/pkg/requestcontext"
)

// Store persists keyring entries.
type Store interface {
	Put(ctx context.Context, e *models.Entry) error
	Delete(ctx context.Context, pid, docTypeID string) error
	Get(ctx context.Context, pid, docTypeID string) (*models.Entry, error)
}

// Service manages keyring entries.
type Service struct {
	store        Store
	masterSecret []byte
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a Service. masterSecret seeds keys for entries registered
// without explicit key material.
func New(store Store, masterSecret []byte, opts ...Option) *Service {
	s := &Service{
		store:        store,
		masterSecret: masterSecret,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert registers docTypeID under pid. Repeating the call with the same key
// updates the schema; with derived keys the key is stable across repeats. An
// entry holding a different key is never replaced: documents sealed with it
// must stay readable, so that is CodeConflict until the entry is deleted.
func (s *Service) Insert(ctx context.Context, pid, docTypeID string, material models.Material) (*models.Entry, error) {
	key := material.Key
	if len(key) == 0 {
		derived, err := s.deriveKey(pid, docTypeID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive keyring key")
		}
		key = derived
	}
	e := &models.Entry{
		Pid:       pid,
		DocTypeID: docTypeID,
		Schema:    material.Schema,
		Key:       key,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := e.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid keyring material")
	}
	if err := s.store.Put(ctx, e); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict,
				fmt.Sprintf("doc type %s is already registered for pid with a different key", docTypeID))
		}
		return nil, wrapStoreErr(err, "failed to store keyring entry")
	}
	s.logger.InfoContext(ctx, "keyring entry stored",
		"request_id", requestcontext.RequestID(ctx),
		"pid", pid,
		"doc_type", docTypeID,
	)
	return e, nil
}

// Delete removes docTypeID from pid. Missing entries are not an error.
func (s *Service) Delete(ctx context.Context, pid, docTypeID string) error {
	if err := s.store.Delete(ctx, pid, docTypeID); err != nil {
		return wrapStoreErr(err, "failed to delete keyring entry")
	}
	s.logger.InfoContext(ctx, "keyring entry deleted",
		"request_id", requestcontext.RequestID(ctx),
		"pid", pid,
		"doc_type", docTypeID,
	)
	return nil
}

// Get returns the entry admitting docTypeID for pid: the pid's own entry if
// present, else the global one. Absence is CodeKeyringMissing.
func (s *Service) Get(ctx context.Context, pid, docTypeID string) (*models.Entry, error) {
	e, err := s.store.Get(ctx, pid, docTypeID)
	if err == nil {
		s.metrics.IncrementLookup("pid")
		return e, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, wrapStoreErr(err, "failed to load keyring entry")
	}

	if pid != models.GlobalScope {
		e, err = s.store.Get(ctx, models.GlobalScope, docTypeID)
		if err == nil {
			s.metrics.IncrementLookup("global")
			return e, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, wrapStoreErr(err, "failed to load keyring entry")
		}
	}

	s.metrics.IncrementLookup("miss")
	return nil, dErrors.Wrap(err, dErrors.CodeKeyringMissing, fmt.Sprintf("doc type %s is not registered for pid", docTypeID))
}

// Lookup returns the entry registered under exactly scope, with no fallback
// to the global scope. Documents are opened with the entry they were sealed
// with, so a pid entry registered later never shadows a global one.
func (s *Service) Lookup(ctx context.Context, scope, docTypeID string) (*models.Entry, error) {
	e, err := s.store.Get(ctx, scope, docTypeID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeKeyringMissing, fmt.Sprintf("doc type %s is not registered in scope", docTypeID))
	}
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load keyring entry")
	}
	return e, nil
}

// SeedGlobal registers docTypes in the global scope with derived keys.
func (s *Service) SeedGlobal(ctx context.Context, docTypes []string) error {
	for _, dt := range docTypes {
		if _, err := s.Insert(ctx, models.GlobalScope, dt, models.Material{}); err != nil {
			return fmt.Errorf("seed doc type %s: %w", dt, err)
		}
	}
	return nil
}

// deriveKey expands the master secret with salt = pid and info = doc type,
// so every (pid, doc type) pair gets an independent, reproducible key.
func (s *Service) deriveKey(pid, docTypeID string) ([]byte, error) {
	if len(s.masterSecret) == 0 {
		return nil, errors.New("no keyring master secret configured")
	}
	key := make([]byte, models.KeySize)
	r := hkdf.New(sha256.New, s.masterSecret, []byte(pid), []byte("clearinghouse/doc-type/"+docTypeID))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func wrapStoreErr(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
