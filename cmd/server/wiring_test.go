package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emcs/internal/platform/config"
)

func testConfig(t *testing.T) config.Config {
	cfg := config.FromEnv()
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "emcs.db")
	cfg.Ledger.Backend = "stub"
	cfg.Redis.URL = ""
	cfg.Kafka.Brokers = nil
	return cfg
}

func TestBuild(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("serves health once assembled", func(t *testing.T) {
		a, err := build(context.Background(), testConfig(t), log)
		require.NoError(t, err)
		defer a.close()

		rr := httptest.NewRecorder()
		a.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"database":"ok"`)
	})

	t.Run("failure after the store opened closes what was opened", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Ledger.Backend = "carrier-pigeon"

		var closed []string
		a := &app{closers: []func(){func() { closed = append(closed, "earlier") }}}
		got, err := buildApp(context.Background(), cfg, log, a)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.Equal(t, []string{"earlier"}, closed)
		require.Len(t, a.closers, 2, "database closer registered before the ledger failed")
	})
}
