package ids

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type EnvelopeSuite struct {
	suite.Suite
	identity Identity
	now      time.Time
	builder  *Builder
}

func TestEnvelopeSuite(t *testing.T) {
	suite.Run(t, new(EnvelopeSuite))
}

func (s *EnvelopeSuite) SetupTest() {
	s.identity = Identity{
		SenderAgent:     "https://clearinghouse.example/agent",
		IssuerConnector: "https://clearinghouse.example/connector",
		ModelVersion:    "4.0.0",
	}
	s.now = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	n := 0
	s.builder = NewBuilder(s.identity,
		WithClock(func() time.Time { return s.now }),
		WithIDGenerator(func() string { n++; return "resp-" + string(rune('0'+n)) }),
	)
}

func (s *EnvelopeSuite) request() *IdsMessage {
	return &IdsMessage{
		ID:               "req-17",
		TypeMessage:      MessageTypeQuery,
		Pid:              "pid-a",
		ModelVersion:     "4.0.0",
		Issued:           "2026-03-04T09:59:00Z",
		IssuerConnector:  "https://connector-a.example",
		SenderAgent:      "https://connector-a.example/agent",
		TransferContract: "contract-9",
	}
}

func (s *EnvelopeSuite) TestResult() {
	s.Run("correlates with the request and addresses the sender", func() {
		req := s.request()
		resp := s.builder.Result(req, `{"ok":true}`)

		s.Equal(MessageTypeResult, resp.Header.TypeMessage)
		s.Equal(req.ID, resp.Header.CorrelationMessage)
		s.Equal([]string{req.SenderAgent}, resp.Header.RecipientAgent)
		s.Equal([]string{req.IssuerConnector}, resp.Header.RecipientConnector)
		s.Equal(req.TransferContract, resp.Header.TransferContract)
		s.Equal(`{"ok":true}`, resp.Payload)
	})

	s.Run("stamps the configured identity", func() {
		resp := s.builder.Result(s.request(), "")

		s.Equal(s.identity.SenderAgent, resp.Header.SenderAgent)
		s.Equal(s.identity.IssuerConnector, resp.Header.IssuerConnector)
		s.Equal(s.identity.ModelVersion, resp.Header.ModelVersion)
		s.Equal("2026-03-04T10:00:00Z", resp.Header.Issued)
	})

	s.Run("mints a fresh id per response", func() {
		first := s.builder.Result(s.request(), "")
		second := s.builder.Result(s.request(), "")

		s.NotEqual(first.Header.ID, second.Header.ID)
		s.NotEqual("req-17", first.Header.ID)
	})
}

func (s *EnvelopeSuite) TestRejection() {
	s.Run("carries reason on header and payload", func() {
		req := s.request()
		resp := s.builder.Rejection(req, ReasonNotAuthorized, "caller may not access pid")

		s.Equal(MessageTypeRejection, resp.Header.TypeMessage)
		s.Equal(string(ReasonNotAuthorized), resp.Header.RejectionReason)
		s.Equal(req.ID, resp.Header.CorrelationMessage)

		var body Rejection
		s.Require().NoError(json.Unmarshal([]byte(resp.Payload), &body))
		s.Equal(ReasonNotAuthorized, body.Reason)
		s.Equal("caller may not access pid", body.Description)
	})

	s.Run("without a parsed request the response is uncorrelated", func() {
		resp := s.builder.Rejection(nil, ReasonMalformedMessage, "bad json")

		s.Empty(resp.Header.CorrelationMessage)
		s.Empty(resp.Header.RecipientAgent)
		s.Equal(s.identity.SenderAgent, resp.Header.SenderAgent)
	})
}

func TestIdsMessageValidate(t *testing.T) {
	valid := func() IdsMessage {
		return IdsMessage{
			ID:              "msg-1",
			TypeMessage:     MessageTypeLog,
			ModelVersion:    "4.0.0",
			Issued:          "2020-10-22T07:29:43.593+02:00",
			IssuerConnector: "https://connector-a.example",
			SenderAgent:     "https://connector-a.example/agent",
		}
	}

	tests := []struct {
		name    string
		mutate  func(m *IdsMessage)
		wantErr string
	}{
		{name: "valid", mutate: func(*IdsMessage) {}},
		{name: "missing id", mutate: func(m *IdsMessage) { m.ID = "" }, wantErr: "header id is required"},
		{name: "unknown type", mutate: func(m *IdsMessage) { m.TypeMessage = "NotifyMessage" }, wantErr: "unknown type_message"},
		{name: "missing sender agent", mutate: func(m *IdsMessage) { m.SenderAgent = "" }, wantErr: "sender_agent"},
		{name: "bad issued", mutate: func(m *IdsMessage) { m.Issued = "yesterday" }, wantErr: "RFC 3339"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := valid()
			tt.mutate(&msg)
			err := msg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoggedFoldsPayloadIntoHeader(t *testing.T) {
	msg := &ClearingHouseMessage{
		Header: IdsMessage{
			ID:                 "msg-1",
			RecipientConnector: []string{"https://clearinghouse.example/connector"},
			SecurityToken:      &SecurityToken{TokenValue: "dat"},
		},
		Payload:     `{"temp":21}`,
		PayloadType: "application/json",
	}

	logged := msg.Logged("pid-a")
	assert.Equal(t, "pid-a", logged.Pid)
	assert.Equal(t, `{"temp":21}`, logged.Payload)
	assert.Equal(t, "application/json", logged.PayloadType)

	logged.RecipientConnector[0] = "changed"
	logged.SecurityToken.TokenValue = "changed"
	assert.Equal(t, "https://clearinghouse.example/connector", msg.Header.RecipientConnector[0])
	assert.Equal(t, "dat", msg.Header.SecurityToken.TokenValue)
}
