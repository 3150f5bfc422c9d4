// Package testutil provides common test utilities for handler and integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clearinghouse/internal/ids"
)

// NewJSONRequest creates an HTTP request with a JSON body marshaled from body.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewRequestWithBody creates an HTTP request with a raw string body.
func NewRequestWithBody(t *testing.T, method, path string, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewEnvelopeRequest builds an envelope request authenticated with token. An
// empty token sends no Authorization header.
func NewEnvelopeRequest(t *testing.T, method, path, token string, msg *ids.ClearingHouseMessage) *http.Request {
	t.Helper()
	req := NewJSONRequest(t, method, path, msg)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// DoRequest executes a request against a handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse unmarshals the response body into T.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var result T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result), "failed to unmarshal response")
	return &result
}

// DecodeEnvelope decodes the response body as a ClearingHouseMessage.
func DecodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) *ids.ClearingHouseMessage {
	t.Helper()
	return UnmarshalResponse[ids.ClearingHouseMessage](t, rr)
}

// DecodePayload unmarshals an envelope payload into T.
func DecodePayload[T any](t *testing.T, msg *ids.ClearingHouseMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &out), "failed to unmarshal payload %q", msg.Payload)
	return out
}

// AssertStatus asserts the response status code matches expected.
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code, body: %s", rr.Body.String())
}

// AssertCorrelated asserts the response header answers request: correlation
// id and recipients point back at the sender.
func AssertCorrelated(t *testing.T, request, response *ids.IdsMessage) {
	t.Helper()
	assert.Equal(t, request.ID, response.CorrelationMessage, "correlation_message")
	assert.Equal(t, []string{request.SenderAgent}, response.RecipientAgent, "recipient_agent")
	assert.Equal(t, []string{request.IssuerConnector}, response.RecipientConnector, "recipient_connector")
}

// AssertRejection asserts status, message type and rejection reason.
func AssertRejection(t *testing.T, rr *httptest.ResponseRecorder, status int, reason ids.RejectionReason) *ids.ClearingHouseMessage {
	t.Helper()
	AssertStatus(t, rr, status)
	resp := DecodeEnvelope(t, rr)
	assert.Equal(t, ids.MessageTypeRejection, resp.Header.TypeMessage)
	assert.Equal(t, string(reason), resp.Header.RejectionReason)
	return resp
}

// AssertErrorCode asserts a plain JSON error body carries expectedCode.
func AssertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, expectedCode string) {
	t.Helper()
	var errResp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp), "failed to unmarshal error response")
	assert.Equal(t, expectedCode, errResp["error"], "unexpected error code")
}
