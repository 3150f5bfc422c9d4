// Package ids models the data-space message protocol spoken at the clearing
// house boundary: the IdsMessage header, the ClearingHouseMessage envelope,
// and the rules for building correlated responses.
package ids

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	dErrors "clearinghouse/pkg/domain-errors"
)

// MessageType is the protocol type of a message header.
type MessageType string

const (
	MessageTypeRequest   MessageType = "RequestMessage"
	MessageTypeLog       MessageType = "LogMessage"
	MessageTypeQuery     MessageType = "QueryMessage"
	MessageTypeResult    MessageType = "ResultMessage"
	MessageTypeRejection MessageType = "RejectionMessage"
)

// IsValid reports whether t is a known message type.
func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeRequest, MessageTypeLog, MessageTypeQuery, MessageTypeResult, MessageTypeRejection:
		return true
	}
	return false
}

// SecurityToken is the dynamic attribute token a connector attaches to its
// header. The clearing house stores it verbatim.
type SecurityToken struct {
	ID          string `json:"id,omitempty"`
	TokenFormat string `json:"token_format,omitempty"`
	TokenValue  string `json:"token_value"`
}

// IdsMessage is the message header. Optional fields are omitted from JSON
// when empty.
type IdsMessage struct {
	ID                 string         `json:"id"`
	TypeMessage        MessageType    `json:"type_message"`
	Pid                string         `json:"pid,omitempty"`
	ModelVersion       string         `json:"model_version"`
	Issued             string         `json:"issued"`
	IssuerConnector    string         `json:"issuer_connector"`
	SenderAgent        string         `json:"sender_agent"`
	RecipientConnector []string       `json:"recipient_connector,omitempty"`
	RecipientAgent     []string       `json:"recipient_agent,omitempty"`
	CorrelationMessage string         `json:"correlation_message,omitempty"`
	TransferContract   string         `json:"transfer_contract,omitempty"`
	ContentVersion     string         `json:"content_version,omitempty"`
	SecurityToken      *SecurityToken `json:"security_token,omitempty"`
	AuthorizationToken string         `json:"authorization_token,omitempty"`
	DocType            string         `json:"doc_type,omitempty"`
	RejectionReason    string         `json:"rejection_reason,omitempty"`
	Payload            string         `json:"payload,omitempty"`
	PayloadType        string         `json:"payload_type,omitempty"`
}

// ClearingHouseMessage is a header plus an optional string payload.
type ClearingHouseMessage struct {
	Header      IdsMessage `json:"header"`
	Payload     string     `json:"payload,omitempty"`
	PayloadType string     `json:"payload_type,omitempty"`
}

// Decode reads a ClearingHouseMessage from r. Decoding failures are reported
// as validation errors.
func Decode(r io.Reader) (*ClearingHouseMessage, error) {
	var msg ClearingHouseMessage
	if err := json.NewDecoder(r).Decode(&msg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "envelope is not valid JSON")
	}
	return &msg, nil
}

// Validate checks the structural rules every inbound header must satisfy.
func (m *IdsMessage) Validate() error {
	switch {
	case m.ID == "":
		return dErrors.New(dErrors.CodeValidation, "header id is required")
	case m.TypeMessage == "":
		return dErrors.New(dErrors.CodeValidation, "header type_message is required")
	case !m.TypeMessage.IsValid():
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown type_message %q", m.TypeMessage))
	case m.ModelVersion == "":
		return dErrors.New(dErrors.CodeValidation, "header model_version is required")
	case m.IssuerConnector == "":
		return dErrors.New(dErrors.CodeValidation, "header issuer_connector is required")
	case m.SenderAgent == "":
		return dErrors.New(dErrors.CodeValidation, "header sender_agent is required")
	case m.Issued == "":
		return dErrors.New(dErrors.CodeValidation, "header issued is required")
	}
	if _, err := time.Parse(time.RFC3339, m.Issued); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "header issued must be an RFC 3339 timestamp")
	}
	return nil
}

// Validate checks the envelope header and that the payload type, when given
// on both the envelope and the header, agrees.
func (m *ClearingHouseMessage) Validate() error {
	if err := m.Header.Validate(); err != nil {
		return err
	}
	if m.PayloadType != "" && m.Header.PayloadType != "" && m.PayloadType != m.Header.PayloadType {
		return dErrors.New(dErrors.CodeValidation, "payload_type on envelope and header disagree")
	}
	return nil
}

// Logged returns the header as it is recorded in the document log: the
// envelope payload and payload type are folded into the header and the pid
// is fixed to the process the message was logged under.
func (m *ClearingHouseMessage) Logged(pid string) IdsMessage {
	logged := m.Header
	logged.Pid = pid
	if m.Payload != "" {
		logged.Payload = m.Payload
	}
	if m.PayloadType != "" {
		logged.PayloadType = m.PayloadType
	}
	logged.RecipientConnector = append([]string(nil), m.Header.RecipientConnector...)
	logged.RecipientAgent = append([]string(nil), m.Header.RecipientAgent...)
	if m.Header.SecurityToken != nil {
		token := *m.Header.SecurityToken
		logged.SecurityToken = &token
	}
	return logged
}
