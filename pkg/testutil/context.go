package testutil

import (
	"net/http"
	"time"

	id "emcs/pkg/domain"
	"emcs/pkg/requestcontext"
)

// WithParty adds an authenticated party to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// Malformed addresses are silently ignored.
func WithParty(req *http.Request, address string) *http.Request {
	if party, err := id.ParsePartyID(address); err == nil {
		return req.WithContext(requestcontext.WithParty(req.Context(), party))
	}
	return req
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
