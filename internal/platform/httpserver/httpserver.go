package httpserver

import (
	"net/http"
	"time"
)

const DefaultWriteTimeout = 60 * time.Second

type Option func(*http.Server)

// WithWriteTimeout raises the write deadline to d. Values below
// DefaultWriteTimeout are ignored.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *http.Server) {
		if d > s.WriteTimeout {
			s.WriteTimeout = d
		}
	}
}

// New builds an HTTP server with sane defaults for this project.
func New(addr string, handler http.Handler, opts ...Option) *http.Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
