package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "emcs/pkg/domain"
	"emcs/pkg/requestcontext"
)

func TestSlidingWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSlidingWindow().WithClock(func() time.Time { return now })

	for i := range 3 {
		res, err := s.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := s.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, now.Add(time.Minute), res.ResetAt)

	other, err := s.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are counted separately")

	now = now.Add(time.Minute + time.Second)
	res, err = s.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "old requests slide out of the window")

	s.Reset("k")
	res, _ = s.Allow(ctx, "k", 3, time.Minute)
	assert.Equal(t, 2, res.Remaining)
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("store down")
}

func TestLimiterMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	party := id.MustParsePartyID("0x" + strings.Repeat("2", 64))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	serve := func(h http.Handler, p id.PartyID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/consignments/x", nil)
		if !p.IsNil() {
			req = req.WithContext(requestcontext.WithParty(req.Context(), p))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	t.Run("rejects once the party exhausts its window", func(t *testing.T) {
		h := New(NewSlidingWindow(), 2, time.Minute, logger).Middleware(ok)

		assert.Equal(t, http.StatusNoContent, serve(h, party).Code)
		rr := serve(h, party)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

		rr = serve(h, party)
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))
		assert.Contains(t, rr.Body.String(), "rate_limited")
	})

	t.Run("unauthenticated requests pass through", func(t *testing.T) {
		h := New(NewSlidingWindow(), 1, time.Minute, logger).Middleware(ok)
		assert.Equal(t, http.StatusNoContent, serve(h, "").Code)
		assert.Equal(t, http.StatusNoContent, serve(h, "").Code)
	})

	t.Run("store errors fail open", func(t *testing.T) {
		h := New(failingStore{}, 1, time.Minute, logger).Middleware(ok)
		assert.Equal(t, http.StatusNoContent, serve(h, party).Code)
	})
}
