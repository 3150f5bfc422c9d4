// Package service is the Document Log: an append-only, hash-chained log of
// IDS messages per pid.
package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clearinghouse/internal/document/metrics"
	"clearinghouse/internal/document/models"
	"clearinghouse/internal/ids"
	dErrors "clearinghouse/pkg/domain-errors"
	"clearinghouse/pkg/platform/sentinel"
	"clearinghouse/pkg/requestcontext"
)

// Store persists documents. Insert is only called inside StoreTx.RunInTx.
type Store interface {
	Head(ctx context.Context, pid string) (*models.Document, error)
	Insert(ctx context.Context, d *models.Document) error
	Get(ctx context.Context, pid, documentID string) (*models.Document, error)
	List(ctx context.Context, pid string) ([]*models.Document, error)
}

// Sealer encrypts a payload bound to its pid and document id. Ref names the
// key it seals with; the document records it so it is opened with the same
// key later.
type Sealer interface {
	Seal(pid, documentID string, plaintext []byte) ([]byte, error)
	Ref() (scope, keyID string)
}

// Opener reverses Sealer.
type Opener interface {
	Open(pid, documentID string, sealed []byte) ([]byte, error)
}

// ReceiptPublisher announces acknowledged appends. Publishing is best
// effort and happens after the append is durable.
type ReceiptPublisher interface {
	Publish(ctx context.Context, receipt models.Receipt) error
}

const defaultAppendTimeout = 5 * time.Second

// Service appends to and reads from the log.
type Service struct {
	store         Store
	tx            StoreTx
	logger        *slog.Logger
	metrics       *metrics.Metrics
	receipts      ReceiptPublisher
	appendTimeout time.Duration
	clock         func() time.Time
	newID         func() (uuid.UUID, error)
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

func WithReceiptPublisher(p ReceiptPublisher) Option {
	return func(s *Service) {
		s.receipts = p
	}
}

// WithAppendTimeout bounds an append including the wait for the pid lock.
func WithAppendTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.appendTimeout = d
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(store Store, tx StoreTx, opts ...Option) *Service {
	s := &Service{
		store:         store,
		tx:            tx,
		logger:        slog.New(slog.DiscardHandler),
		appendTimeout: defaultAppendTimeout,
		clock:         time.Now,
		newID:         uuid.NewV7,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stores header under pid as the next document of the log and
// returns its receipt once durable. The payload, if any, is sealed with
// sealer. Cancelling ctx does not abort an append that has started.
func (s *Service) Append(ctx context.Context, pid, docTypeID string, header ids.IdsMessage, sealer Sealer) (*models.Receipt, error) {
	start := s.clock()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.appendTimeout)
	defer cancel()

	payload := header.Payload
	header.Payload = ""

	var stored *models.Document
	err := s.tx.RunInTx(ctx, pid, func(store Store) error {
		doc, err := s.next(ctx, store, pid, docTypeID, header)
		if err != nil {
			return err
		}
		doc.KeyScope, doc.KeyID = sealer.Ref()
		if payload != "" {
			doc.SealedPayload, err = sealer.Seal(pid, doc.DocumentID, []byte(payload))
			if err != nil {
				return fmt.Errorf("seal payload: %w", err)
			}
		}
		if doc.Hash, err = doc.ComputeHash(); err != nil {
			return err
		}
		if err := store.Insert(ctx, doc); err != nil {
			return err
		}
		stored = doc
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return nil, err
		}
		return nil, wrapStoreErr(err, "failed to append document")
	}

	s.metrics.ObserveAppend(s.clock().Sub(start))
	receipt := models.ReceiptFor(stored)
	s.logger.InfoContext(ctx, "document appended",
		"request_id", requestcontext.RequestID(ctx),
		"pid", pid,
		"document_id", stored.DocumentID,
		"seq", stored.Seq,
	)
	s.publish(ctx, receipt)
	return &receipt, nil
}

// next builds the document following pid's current head.
func (s *Service) next(ctx context.Context, store Store, pid, docTypeID string, header ids.IdsMessage) (*models.Document, error) {
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate document id: %w", err)
	}
	doc := &models.Document{
		DocumentID:    id.String(),
		Pid:           pid,
		Seq:           1,
		DocTypeID:     docTypeID,
		ReceivedAt:    s.clock().UTC().Truncate(time.Microsecond),
		HashChainPrev: models.Seed(),
		Header:        header,
	}

	head, err := store.Head(ctx, pid)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return doc, nil
	case err != nil:
		return nil, err
	}
	doc.Seq = head.Seq + 1
	doc.HashChainPrev = head.Hash
	if doc.ReceivedAt.Before(head.ReceivedAt) {
		doc.ReceivedAt = head.ReceivedAt.UTC()
	}
	return doc, nil
}

func (s *Service) publish(ctx context.Context, receipt models.Receipt) {
	if s.receipts == nil {
		return
	}
	if err := s.receipts.Publish(ctx, receipt); err != nil {
		s.metrics.IncrementReceiptsDropped()
		s.logger.WarnContext(ctx, "receipt not published",
			"request_id", requestcontext.RequestID(ctx),
			"pid", receipt.Pid,
			"document_id", receipt.DocumentID,
			"error", err,
		)
	}
}

// Get returns one document, or CodeNotFound.
func (s *Service) Get(ctx context.Context, pid, documentID string) (*models.Document, error) {
	doc, err := s.store.Get(ctx, pid, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "document not found")
		}
		return nil, wrapStoreErr(err, "failed to load document")
	}
	return doc, nil
}

// List returns pid's documents in append order; empty when there are none.
func (s *Service) List(ctx context.Context, pid string) ([]*models.Document, error) {
	docs, err := s.store.List(ctx, pid)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list documents")
	}
	return docs, nil
}

// Open restores the logged header of doc, payload included.
func (s *Service) Open(doc *models.Document, opener Opener) (ids.IdsMessage, error) {
	header := doc.Header
	header.Pid = doc.Pid
	if len(doc.SealedPayload) == 0 {
		return header, nil
	}
	plain, err := opener.Open(doc.Pid, doc.DocumentID, doc.SealedPayload)
	if err != nil {
		return ids.IdsMessage{}, dErrors.Wrap(errors.Join(err, sentinel.ErrIntegrity), dErrors.CodeInternal, "failed to open document payload")
	}
	header.Payload = string(plain)
	return header, nil
}

// Verify recomputes pid's chain and reports the first broken document.
func (s *Service) Verify(ctx context.Context, pid string) (*models.Verification, error) {
	docs, err := s.List(ctx, pid)
	if err != nil {
		return nil, err
	}

	v := &models.Verification{Pid: pid, Documents: len(docs), Valid: true}
	prev := models.Seed()
	var lastReceived time.Time
	for i, doc := range docs {
		reason := ""
		switch {
		case doc.Seq != int64(i)+1:
			reason = fmt.Sprintf("expected seq %d, found %d", i+1, doc.Seq)
		case !bytes.Equal(doc.HashChainPrev, prev):
			reason = "hash_chain_prev does not match the preceding document"
		case !doc.VerifyHash():
			reason = "document content does not match its hash"
		case doc.ReceivedAt.Before(lastReceived):
			reason = "received_at decreases"
		}
		if reason != "" {
			v.Valid = false
			v.BrokenAt = doc.DocumentID
			v.Reason = reason
			break
		}
		prev = doc.Hash
		lastReceived = doc.ReceivedAt
	}
	if v.Valid && len(docs) > 0 {
		v.Head = hex.EncodeToString(prev)
	}

	s.metrics.IncrementVerification(v.Valid)
	if !v.Valid {
		s.logger.ErrorContext(ctx, "hash chain broken",
			"request_id", requestcontext.RequestID(ctx),
			"pid", pid,
			"document_id", v.BrokenAt,
			"reason", v.Reason,
		)
	}
	return v, nil
}

func wrapStoreErr(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
