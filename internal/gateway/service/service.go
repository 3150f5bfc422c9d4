// Package service is the Message Gateway: it takes an inbound envelope
// through parsing, authentication, authorization and the backend call, and
// turns the outcome into a correlated response envelope.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Processes,Documents,Keyring,TokenValidator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	documentmodels "clearinghouse/internal/document/models"
	documentservice "clearinghouse/internal/document/service"
	"clearinghouse/internal/gateway/metrics"
	"clearinghouse/internal/ids"
	keyringmodels "clearinghouse/internal/keyring/models"
	processmodels "clearinghouse/internal/process/models"
)

// Processes is the process store as the gateway uses it.
type Processes interface {
	Create(ctx context.Context, pid string, owners []string) (*processmodels.Process, error)
	IsOwner(ctx context.Context, pid, subject string) (bool, error)
	Ensure(ctx context.Context, pid, subject string) (*processmodels.Process, bool, error)
}

// Documents is the document log as the gateway uses it.
type Documents interface {
	Append(ctx context.Context, pid, docTypeID string, header ids.IdsMessage, sealer documentservice.Sealer) (*documentmodels.Receipt, error)
	Get(ctx context.Context, pid, documentID string) (*documentmodels.Document, error)
	List(ctx context.Context, pid string) ([]*documentmodels.Document, error)
	Open(doc *documentmodels.Document, opener documentservice.Opener) (ids.IdsMessage, error)
	Verify(ctx context.Context, pid string) (*documentmodels.Verification, error)
}

// Keyring is the doc type registry as the gateway uses it.
type Keyring interface {
	Insert(ctx context.Context, pid, docTypeID string, material keyringmodels.Material) (*keyringmodels.Entry, error)
	Delete(ctx context.Context, pid, docTypeID string) error
	Get(ctx context.Context, pid, docTypeID string) (*keyringmodels.Entry, error)
	Lookup(ctx context.Context, scope, docTypeID string) (*keyringmodels.Entry, error)
}

// TokenValidator returns the connector identity a bearer token carries.
type TokenValidator interface {
	Subject(token string) (string, error)
}

const (
	defaultBackendTimeout = 5 * time.Second
	defaultDocType        = "IDS_MESSAGE"
)

type Service struct {
	processes      Processes
	documents      Documents
	keyring        Keyring
	tokens         TokenValidator
	builder        *ids.Builder
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	backendTimeout time.Duration
	defaultDocType string
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

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithBackendTimeout bounds each backend call. Exceeding it rejects the
// request with an internal error.
func WithBackendTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.backendTimeout = d
		}
	}
}

// WithDefaultDocType sets the doc type assumed for log messages whose
// header carries none.
func WithDefaultDocType(docType string) Option {
	return func(s *Service) {
		if docType != "" {
			s.defaultDocType = docType
		}
	}
}

func New(processes Processes, documents Documents, keyring Keyring, tokens TokenValidator, builder *ids.Builder, opts ...Option) *Service {
	s := &Service{
		processes:      processes,
		documents:      documents,
		keyring:        keyring,
		tokens:         tokens,
		builder:        builder,
		logger:         slog.New(slog.DiscardHandler),
		tracer:         otel.Tracer("clearinghouse/gateway"),
		backendTimeout: defaultBackendTimeout,
		defaultDocType: defaultDocType,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
