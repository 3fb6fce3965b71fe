// Package ratelimit bounds how many API requests each authenticated party
// may make per window.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	dErrors "emcs/pkg/domain-errors"
	"emcs/pkg/platform/httputil"
	"emcs/pkg/requestcontext"
)

// Store counts requests per key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Limiter is request middleware. It must run after authentication.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	logger *slog.Logger
}

func New(store Store, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, limit: limit, window: window, logger: logger}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		party := requestcontext.Party(ctx)
		if party.IsNil() {
			next.ServeHTTP(w, r)
			return
		}

		result, err := l.store.Allow(ctx, party.String(), l.limit, l.window)
		if err != nil {
			// Fail open on store errors.
			l.logger.ErrorContext(ctx, "rate limit check failed", "error", err, "party", party)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			l.logger.WarnContext(ctx, "rate limit exceeded",
				"party", party,
				"request_id", requestcontext.RequestID(ctx),
			)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(requestcontext.Now(ctx))))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, try again later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
