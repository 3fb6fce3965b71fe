// Package httptransport assembles the public HTTP surface.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"emcs/pkg/platform/httputil"
	"emcs/pkg/platform/middleware/auth"
	"emcs/pkg/platform/middleware/ratelimit"
	"emcs/pkg/platform/middleware/requestid"
	"emcs/pkg/platform/middleware/requesttime"
)

// Registrar mounts a bounded context's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps holds what the router needs from main.
type Deps struct {
	Logger   *slog.Logger
	Tokens   auth.Validator
	Gatherer prometheus.Gatherer
	Health   map[string]HealthCheck
	Limiter  *ratelimit.Limiter // optional
	APIs     []Registrar
}

// NewRouter wires middleware, operational endpoints and the authenticated
// /v1 API.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", healthHandler(d.Health))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.RequireParty(d.Tokens, d.Logger))
		if d.Limiter != nil {
			r.Use(d.Limiter.Middleware)
		}
		for _, api := range d.APIs {
			api.Register(r)
		}
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := map[string]string{}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				resp[name] = err.Error()
				continue
			}
			resp[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
