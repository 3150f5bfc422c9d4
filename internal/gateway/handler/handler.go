package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	documentmodels "clearinghouse/internal/document/models"
	gatewayservice "clearinghouse/internal/gateway/service"
	keyringmodels "clearinghouse/internal/keyring/models"
	"clearinghouse/internal/platform/metrics"
	"clearinghouse/internal/platform/middleware"
	dErrors "clearinghouse/pkg/domain-errors"
	"clearinghouse/pkg/platform/httputil"
	"clearinghouse/pkg/platform/middleware/admin"
	"clearinghouse/pkg/platform/middleware/metadata"
	"clearinghouse/pkg/platform/middleware/requesttime"
	"clearinghouse/pkg/requestcontext"
)

// Envelopes larger than this are rejected while reading.
const maxEnvelopeBytes = 4 << 20

const defaultRequestTimeout = 30 * time.Second

// Service is the gateway as the HTTP layer uses it.
type Service interface {
	Handle(ctx context.Context, req gatewayservice.Request) *gatewayservice.Response
	Verify(ctx context.Context, subject, pid string) (*documentmodels.Verification, error)
	DescribeKeyring(ctx context.Context, subject, pid, docTypeID string) (*keyringmodels.Description, error)
	InsertGlobal(ctx context.Context, docTypeID string, material keyringmodels.Material) (*keyringmodels.Description, error)
	DeleteGlobal(ctx context.Context, docTypeID string) error
}

type Handler struct {
	logger         *slog.Logger
	gateway        Service
	metrics        *metrics.Metrics
	tokens         middleware.TokenValidator
	adminToken     string
	requestTimeout time.Duration
}

func New(
	gateway Service,
	tokens middleware.TokenValidator,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	adminToken string,
	requestTimeout time.Duration) *Handler {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &Handler{
		logger:         logger,
		gateway:        gateway,
		metrics:        metrics,
		tokens:         tokens,
		adminToken:     adminToken,
		requestTimeout: requestTimeout,
	}
}

// Register mounts the clearing house routes on r.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(requesttime.Middleware)
	router.Use(metadata.ClientMetadata)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(h.requestTimeout))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))

	router.Post("/process/{pid}", h.envelope(gatewayservice.OpCreateProcess))
	router.Post("/messages/log/{pid}", h.envelope(gatewayservice.OpLogMessage))
	router.Post("/messages/query/{pid}", h.envelope(gatewayservice.OpQueryPid))
	router.Post("/messages/query/{pid}/{id}", h.envelope(gatewayservice.OpQueryDocument))
	router.Post("/keyring/{pid}/{doc_type_id}", h.envelope(gatewayservice.OpKeyringInsert))
	router.Delete("/keyring/{pid}/{doc_type_id}", h.envelope(gatewayservice.OpKeyringDelete))

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.tokens, h.logger))
		r.Get("/keyring/{pid}/{doc_type_id}", h.handleDescribeKeyring)
		r.Get("/messages/verify/{pid}", h.handleVerify)
	})

	router.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/admin/keyring/{doc_type_id}", h.handleAdminInsert)
		r.Delete("/admin/keyring/{doc_type_id}", h.handleAdminDelete)
	})

	r.Mount("/", router)
}

// envelope adapts an envelope route to the gateway pipeline. Authentication
// happens inside the pipeline so that its rejections are correlated.
func (h *Handler) envelope(op gatewayservice.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
		resp := h.gateway.Handle(r.Context(), gatewayservice.Request{
			Operation:  op,
			Token:      token,
			Pid:        chi.URLParam(r, "pid"),
			DocumentID: chi.URLParam(r, "id"),
			DocTypeID:  chi.URLParam(r, "doc_type_id"),
			Body:       http.MaxBytesReader(w, r.Body, maxEnvelopeBytes),
		})
		httputil.WriteJSON(w, resp.Status, resp.Message)
	}
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := h.gateway.Verify(ctx, requestcontext.Subject(ctx), chi.URLParam(r, "pid"))
	if err != nil {
		h.writeError(ctx, w, "verify", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDescribeKeyring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.gateway.DescribeKeyring(ctx, requestcontext.Subject(ctx), chi.URLParam(r, "pid"), chi.URLParam(r, "doc_type_id"))
	if err != nil {
		h.writeError(ctx, w, "describe keyring", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleAdminInsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var material keyringmodels.Material
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes)).Decode(&material); err != nil {
			h.logger.WarnContext(ctx, "invalid keyring material",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	d, err := h.gateway.InsertGlobal(ctx, chi.URLParam(r, "doc_type_id"), material)
	if err != nil {
		h.writeError(ctx, w, "insert global doc type", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.gateway.DeleteGlobal(ctx, chi.URLParam(r, "doc_type_id")); err != nil {
		h.writeError(ctx, w, "delete global doc type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, action string, err error) {
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
		h.logger.ErrorContext(ctx, "failed to "+action,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
