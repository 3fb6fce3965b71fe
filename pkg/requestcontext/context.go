// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	requester := requestcontext.Party(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"

	id "emcs/pkg/domain"
)

type (
	partyKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyParty       = partyKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Party returns the authenticated party address, or the zero PartyID.
func Party(ctx context.Context) id.PartyID {
	if p, ok := ctx.Value(ContextKeyParty).(id.PartyID); ok {
		return p
	}
	return ""
}

// WithParty injects the authenticated party address.
func WithParty(ctx context.Context, party id.PartyID) context.Context {
	return context.WithValue(ctx, ContextKeyParty, party)
}

// RequestID returns the correlation ID for the current request.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request-scoped time, falling back to time.Now().
// All timestamps written during one request share this value.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok && !t.IsZero() {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed request time. Tests use this to pin timestamps.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
