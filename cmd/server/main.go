package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"emcs/internal/platform/config"
	"emcs/internal/platform/httpserver"
	"emcs/internal/platform/logger"
)

// main wires dependencies, serves the HTTP API and runs the outbox relay
// until a termination signal arrives.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("emcs server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	// A dispatch makes two ledger submissions: the document anchor and the
	// transition itself.
	srv := httpserver.New(cfg.Server.Addr, app.router,
		httpserver.WithWriteTimeout(2*cfg.Ledger.SubmissionBudget()+10*time.Second))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting emcs server",
			"addr", cfg.Server.Addr,
			"store", cfg.Store.Backend,
			"ledger", cfg.Ledger.Backend,
			"signer", app.signer.Address(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return app.relay.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
		defer cancel()
		log.Info("shutting down emcs server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
