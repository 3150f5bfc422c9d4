package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clearinghouse/internal/ids"
	keyringmodels "clearinghouse/internal/keyring/models"
	dErrors "clearinghouse/pkg/domain-errors"
	"clearinghouse/pkg/requestcontext"
)

// Operation names a gateway route.
type Operation string

const (
	OpCreateProcess Operation = "create_process"
	OpLogMessage    Operation = "log_message"
	OpQueryPid      Operation = "query_with_pid"
	OpQueryDocument Operation = "query_with_pid_and_id"
	OpKeyringInsert Operation = "keyring_insert"
	OpKeyringDelete Operation = "keyring_delete"
)

// expects returns the type_message an operation accepts.
func (o Operation) expects() ids.MessageType {
	switch o {
	case OpLogMessage:
		return ids.MessageTypeLog
	case OpQueryPid, OpQueryDocument:
		return ids.MessageTypeQuery
	default:
		return ids.MessageTypeRequest
	}
}

// State is how far a request got through the pipeline.
type State string

const (
	StateReceived         State = "received"
	StateParsed           State = "parsed"
	StateAuthExtracted    State = "auth_extracted"
	StateAuthorizedForPid State = "authorized_for_pid"
	StateBackendInvoked   State = "backend_invoked"
	StateResponded        State = "responded"
	StateRejected         State = "rejected"
)

// Request is one inbound envelope plus its route parameters.
type Request struct {
	Operation  Operation
	Token      string
	Pid        string
	DocumentID string
	DocTypeID  string
	Body       io.Reader
}

// Response is the envelope to send back and its HTTP status.
type Response struct {
	Status  int
	Message *ids.ClearingHouseMessage
}

// exchange carries one request through the pipeline.
type exchange struct {
	req     Request
	state   State
	msg     *ids.ClearingHouseMessage
	subject string

	// set by authorize for create_process
	alreadyOwner bool
}

// rejection is a typed pipeline failure. detail is for logs only; it may
// say whether a pid exists, which description must never reveal.
type rejection struct {
	reason      ids.RejectionReason
	status      int
	description string
	detail      string
	cause       error
}

func (r *rejection) Error() string {
	if r.cause != nil {
		return fmt.Sprintf("%s: %s: %v", r.reason, r.detail, r.cause)
	}
	return fmt.Sprintf("%s: %s", r.reason, r.detail)
}

func (r *rejection) Unwrap() error { return r.cause }

func notAuthorized(detail string) *rejection {
	return &rejection{
		reason:      ids.ReasonNotAuthorized,
		status:      http.StatusUnauthorized,
		description: "caller is not authorized for this process",
		detail:      detail,
	}
}

func malformed(err error) *rejection {
	return &rejection{
		reason:      ids.ReasonMalformedMessage,
		status:      http.StatusBadRequest,
		description: describe(err),
		detail:      "malformed envelope",
		cause:       err,
	}
}

// classify maps any pipeline error to the rejection sent to the caller.
func classify(err error) *rejection {
	var r *rejection
	if errors.As(err, &r) {
		return r
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound:
		return &rejection{ids.ReasonDocumentNotFound, http.StatusNotFound, "document not found", "document not found", err}
	case dErrors.CodeKeyringMissing:
		return &rejection{ids.ReasonKeyringMissing, http.StatusBadRequest, describe(err), "keyring entry missing", err}
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return malformed(err)
	case dErrors.CodeTimeout:
		return &rejection{ids.ReasonInternalError, http.StatusInternalServerError, "internal error", "backend timed out", err}
	default:
		return &rejection{ids.ReasonInternalError, http.StatusInternalServerError, "internal error", "backend failed", err}
	}
}

func describe(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// Handle runs req through the pipeline. It always returns a response; a
// failure at any stage becomes a RejectionMessage correlated to the request
// whenever the request header could be read.
func (s *Service) Handle(ctx context.Context, req Request) *Response {
	ctx, span := s.tracer.Start(ctx, "gateway."+string(req.Operation),
		trace.WithAttributes(
			attribute.String("clearinghouse.operation", string(req.Operation)),
			attribute.String("clearinghouse.pid", req.Pid),
		))
	defer span.End()

	ex := &exchange{req: req, state: StateReceived}
	resp, err := s.run(ctx, ex)
	if err != nil {
		return s.reject(ctx, span, ex, err)
	}
	ex.state = StateResponded
	s.metrics.IncrementResult(string(req.Operation))
	return resp
}

func (s *Service) run(ctx context.Context, ex *exchange) (*Response, error) {
	if err := s.stage(ctx, ex, StateParsed, s.parse); err != nil {
		return nil, err
	}
	if err := s.stage(ctx, ex, StateAuthExtracted, s.authenticate); err != nil {
		return nil, err
	}
	if err := s.stage(ctx, ex, StateAuthorizedForPid, s.authorize); err != nil {
		return nil, err
	}

	var resp *Response
	err := s.stage(ctx, ex, StateBackendInvoked, func(ctx context.Context, ex *exchange) error {
		ctx, cancel := context.WithTimeout(ctx, s.backendTimeout)
		defer cancel()
		start := time.Now()
		var err error
		resp, err = s.invoke(ctx, ex)
		s.metrics.ObserveBackend(string(ex.req.Operation), time.Since(start))
		return err
	})
	return resp, err
}

// stage runs fn in its own span and advances ex to next on success.
func (s *Service) stage(ctx context.Context, ex *exchange, next State, fn func(context.Context, *exchange) error) error {
	ctx, span := s.tracer.Start(ctx, "gateway."+string(next))
	defer span.End()
	if err := fn(ctx, ex); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	ex.state = next
	return nil
}

func (s *Service) parse(_ context.Context, ex *exchange) error {
	msg, err := ids.Decode(ex.req.Body)
	if err != nil {
		return malformed(err)
	}
	ex.msg = msg
	if err := msg.Validate(); err != nil {
		return malformed(err)
	}
	if want := ex.req.Operation.expects(); msg.Header.TypeMessage != want {
		return malformed(dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("%s expects %s, got %s", ex.req.Operation, want, msg.Header.TypeMessage)))
	}
	if ex.req.Pid == "" || ex.req.Pid == keyringmodels.GlobalScope {
		return malformed(dErrors.New(dErrors.CodeValidation, fmt.Sprintf("pid %q is not usable", ex.req.Pid)))
	}
	return nil
}

// authenticate takes the token from the Authorization header, falling back
// to the DAPS token carried in the header's security_token.
func (s *Service) authenticate(_ context.Context, ex *exchange) error {
	token := ex.req.Token
	if token == "" && ex.msg.Header.SecurityToken != nil {
		token = ex.msg.Header.SecurityToken.TokenValue
	}
	if token == "" {
		return &rejection{
			reason:      ids.ReasonNotAuthenticated,
			status:      http.StatusUnauthorized,
			description: "missing bearer token",
			detail:      "no token",
		}
	}
	subject, err := s.tokens.Subject(token)
	if err != nil {
		return &rejection{
			reason:      ids.ReasonNotAuthenticated,
			status:      http.StatusUnauthorized,
			description: "invalid or expired token",
			detail:      "token rejected",
			cause:       err,
		}
	}
	ex.subject = subject
	return nil
}

func (s *Service) reject(ctx context.Context, span trace.Span, ex *exchange, err error) *Response {
	r := classify(err)
	op := string(ex.req.Operation)

	level := slog.LevelWarn
	if r.status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"pid", ex.req.Pid,
		"operation", op,
		"state", string(ex.state),
		"reason", string(r.reason),
		"detail", r.detail,
	}
	if r.cause != nil {
		attrs = append(attrs, "error", r.cause)
	}
	s.logger.Log(ctx, level, "envelope rejected", attrs...)

	span.RecordError(err)
	span.SetStatus(codes.Error, string(r.reason))
	span.SetAttributes(attribute.String("clearinghouse.rejection_reason", string(r.reason)))
	s.metrics.IncrementRejection(op, string(r.reason), string(ex.state))

	ex.state = StateRejected
	return &Response{
		Status:  r.status,
		Message: s.builder.Rejection(ex.requestHeader(), r.reason, r.description),
	}
}

// requestHeader is the header responses correlate to, with pid fixed to the
// routed process. nil when nothing could be parsed.
func (ex *exchange) requestHeader() *ids.IdsMessage {
	if ex.msg == nil {
		return nil
	}
	header := ex.msg.Header
	header.Pid = ex.req.Pid
	return &header
}
