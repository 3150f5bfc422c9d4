package testutil

import (
	"net/http"

	"clearinghouse/pkg/requestcontext"
)

// WithSubject adds an authenticated connector identity to the request
// context, as the auth middleware would.
func WithSubject(req *http.Request, subject string) *http.Request {
	return req.WithContext(requestcontext.WithSubject(req.Context(), subject))
}
