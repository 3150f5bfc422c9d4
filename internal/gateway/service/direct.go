package service

import (
	"context"
	"errors"

	documentmodels "clearinghouse/internal/document/models"
	keyringmodels "clearinghouse/internal/keyring/models"
	dErrors "clearinghouse/pkg/domain-errors"
	"clearinghouse/pkg/requestcontext"
)

// The operations below are plain JSON endpoints outside the envelope
// protocol. subject is the already authenticated caller.

// Verify recomputes pid's hash chain for one of its owners.
func (s *Service) Verify(ctx context.Context, subject, pid string) (*documentmodels.Verification, error) {
	ctx, span := s.tracer.Start(ctx, "gateway.verify")
	defer span.End()

	if err := s.requireOwner(ctx, pid, subject); err != nil {
		return nil, s.directError(ctx, "verify", pid, err)
	}
	v, err := s.documents.Verify(ctx, pid)
	if err != nil {
		return nil, s.directError(ctx, "verify", pid, err)
	}
	return v, nil
}

// DescribeKeyring returns the entry that admits docTypeID under pid,
// without its key.
func (s *Service) DescribeKeyring(ctx context.Context, subject, pid, docTypeID string) (*keyringmodels.Description, error) {
	ctx, span := s.tracer.Start(ctx, "gateway.keyring_get")
	defer span.End()

	if err := s.requireOwner(ctx, pid, subject); err != nil {
		return nil, s.directError(ctx, "keyring_get", pid, err)
	}
	entry, err := s.keyring.Get(ctx, pid, docTypeID)
	if dErrors.HasCode(err, dErrors.CodeKeyringMissing) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "doc type not registered")
	}
	if err != nil {
		return nil, s.directError(ctx, "keyring_get", pid, err)
	}
	d := entry.Describe()
	return &d, nil
}

// InsertGlobal registers docTypeID for every pid.
func (s *Service) InsertGlobal(ctx context.Context, docTypeID string, material keyringmodels.Material) (*keyringmodels.Description, error) {
	entry, err := s.keyring.Insert(ctx, keyringmodels.GlobalScope, docTypeID, material)
	if err != nil {
		return nil, err
	}
	d := entry.Describe()
	return &d, nil
}

// DeleteGlobal removes a globally registered doc type. Pid scoped entries
// of the same doc type are unaffected.
func (s *Service) DeleteGlobal(ctx context.Context, docTypeID string) error {
	return s.keyring.Delete(ctx, keyringmodels.GlobalScope, docTypeID)
}

// directError logs an authorization failure with its internal detail and
// converts it to a coded error.
func (s *Service) directError(ctx context.Context, op, pid string, err error) error {
	var r *rejection
	if !errors.As(err, &r) {
		return err
	}
	s.logger.WarnContext(ctx, "request rejected",
		"request_id", requestcontext.RequestID(ctx),
		"pid", pid,
		"operation", op,
		"reason", string(r.reason),
		"detail", r.detail,
	)
	return dErrors.New(dErrors.CodeUnauthorized, r.description)
}
