package ids

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RejectionReason is the machine-readable cause carried by a RejectionMessage.
type RejectionReason string

const (
	ReasonNotAuthenticated     RejectionReason = "not_authenticated"
	ReasonNotAuthorized        RejectionReason = "not_authorized"
	ReasonMalformedMessage     RejectionReason = "malformed_message"
	ReasonProcessAlreadyExists RejectionReason = "process_already_exists"
	ReasonDocumentNotFound     RejectionReason = "document_not_found"
	ReasonKeyringMissing       RejectionReason = "keyring_missing"
	ReasonInternalError        RejectionReason = "internal_error"
)

// Rejection is the payload of a RejectionMessage.
type Rejection struct {
	Reason      RejectionReason `json:"reason"`
	Description string          `json:"description,omitempty"`
}

// Identity is the clearing house's own protocol identity, stamped on every
// response header.
type Identity struct {
	SenderAgent     string
	IssuerConnector string
	ModelVersion    string
}

// Builder constructs response envelopes. Every response goes through it so
// that sender, recipient and correlation fields have one shape.
type Builder struct {
	identity Identity
	clock    func() time.Time
	newID    func() string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock overrides the issued timestamp source.
func WithClock(clock func() time.Time) BuilderOption {
	return func(b *Builder) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithIDGenerator overrides how response ids are minted.
func WithIDGenerator(newID func() string) BuilderOption {
	return func(b *Builder) {
		if newID != nil {
			b.newID = newID
		}
	}
}

// NewBuilder creates a Builder for identity.
func NewBuilder(identity Identity, opts ...BuilderOption) *Builder {
	b := &Builder{
		identity: identity,
		clock:    time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Identity returns the identity stamped on responses.
func (b *Builder) Identity() Identity {
	return b.identity
}

// Result builds a ResultMessage answering req with payload.
func (b *Builder) Result(req *IdsMessage, payload string) *ClearingHouseMessage {
	return &ClearingHouseMessage{
		Header:  b.header(req, MessageTypeResult),
		Payload: payload,
	}
}

// Rejection builds a RejectionMessage answering req. req may be nil when the
// inbound envelope could not be parsed; the response is then uncorrelated.
func (b *Builder) Rejection(req *IdsMessage, reason RejectionReason, description string) *ClearingHouseMessage {
	header := b.header(req, MessageTypeRejection)
	header.RejectionReason = string(reason)
	body, _ := json.Marshal(Rejection{Reason: reason, Description: description})
	return &ClearingHouseMessage{
		Header:  header,
		Payload: string(body),
	}
}

func (b *Builder) header(req *IdsMessage, messageType MessageType) IdsMessage {
	header := IdsMessage{
		ID:              b.newID(),
		TypeMessage:     messageType,
		ModelVersion:    b.identity.ModelVersion,
		Issued:          b.clock().UTC().Format(time.RFC3339Nano),
		IssuerConnector: b.identity.IssuerConnector,
		SenderAgent:     b.identity.SenderAgent,
	}
	if req == nil {
		return header
	}
	header.Pid = req.Pid
	header.CorrelationMessage = req.ID
	header.RecipientAgent = []string{req.SenderAgent}
	header.RecipientConnector = []string{req.IssuerConnector}
	header.TransferContract = req.TransferContract
	return header
}
