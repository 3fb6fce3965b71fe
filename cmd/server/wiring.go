package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"emcs/internal/arc"
	arcmetrics "emcs/internal/arc/metrics"
	arcstore "emcs/internal/arc/store"
	"emcs/internal/consignment/handler"
	consignmentmetrics "emcs/internal/consignment/metrics"
	"emcs/internal/consignment/outbox"
	"emcs/internal/consignment/service"
	consignmentstore "emcs/internal/consignment/store"
	"emcs/internal/ledger"
	"emcs/internal/ledger/chain"
	ledgermetrics "emcs/internal/ledger/metrics"
	"emcs/internal/ledger/rpc"
	"emcs/internal/ledger/signer"
	"emcs/internal/ledger/stub"
	"emcs/internal/notary"
	"emcs/internal/party"
	"emcs/internal/platform/config"
	"emcs/internal/platform/database"
	"emcs/internal/platform/redis"
	httptransport "emcs/internal/transport/http"
	"emcs/pkg/platform/circuit"
	"emcs/pkg/platform/middleware/auth"
	"emcs/pkg/platform/middleware/ratelimit"
)

type consignmentStore interface {
	service.Store
	outbox.Source
}

type app struct {
	router  http.Handler
	relay   *outbox.Relay
	signer  *signer.Schnorr
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	return buildApp(ctx, cfg, log, &app{})
}

// buildApp assembles a. On failure everything opened so far is closed.
func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger, a *app) (*app, error) {
	if err := a.assemble(ctx, cfg, log); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) assemble(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	health := map[string]httptransport.HealthCheck{}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cm := consignmentmetrics.New(reg)

	st, db, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	if db != nil {
		a.closers = append(a.closers, func() { _ = db.Close() })
		health["database"] = db.PingContext
	}

	key, err := loadSigner(cfg.Ledger.SignerSeed)
	if err != nil {
		return err
	}
	a.signer = key

	client, err := openLedger(cfg.Ledger, log)
	if err != nil {
		return err
	}
	executor := ledger.NewExecutor(client,
		ledger.WithLogger(log),
		ledger.WithMetrics(ledgermetrics.New(reg)),
		ledger.WithMaxAttempts(cfg.Ledger.MaxAttempts),
		ledger.WithBaseDelay(cfg.Ledger.BaseDelay),
		ledger.WithAttemptTimeout(cfg.Ledger.AttemptTimeout),
	)

	var reserver arc.Reserver = arcstore.NewInMemory()
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		reserver = arcstore.NewRedis(rc.Client)
		a.closers = append(a.closers, func() { _ = rc.Close() })
		health["redis"] = rc.Health
	}
	generator, err := arc.NewGenerator(service.ReferenceLookup{Store: st},
		arc.WithReserver(reserver),
		arc.WithJurisdiction(cfg.ARC.Jurisdiction),
		arc.WithMaxAttempts(cfg.ARC.MaxAttempts),
		arc.WithLogger(log),
		arc.WithMetrics(arcmetrics.New(reg)),
	)
	if err != nil {
		return err
	}

	digest, err := notary.ParseDigest(cfg.Notary.Digest)
	if err != nil {
		return err
	}
	notarizer := notary.New(executor, notary.WithDigest(digest), notary.WithLogger(log))

	svc := service.New(st, generator, executor, notarizer,
		service.WithLogger(log),
		service.WithMetrics(cm),
		service.WithSigner(key),
	)

	directory := party.NewDirectory()
	party.SeedDevelopment(directory)

	a.router = httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Tokens:   auth.NewTokenService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer),
		Gatherer: reg,
		Health:   health,
		Limiter:  ratelimit.New(ratelimit.NewSlidingWindow(), cfg.Limits.RequestsPerWindow, cfg.Limits.Window, log),
		APIs:     []httptransport.Registrar{handler.New(svc, directory, log)},
	})

	publisher, err := openPublisher(ctx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	if kp, ok := publisher.(*outbox.KafkaPublisher); ok {
		a.closers = append(a.closers, kp.Close)
	}
	a.relay = outbox.NewRelay(st, publisher,
		outbox.WithInterval(cfg.Kafka.PollInterval),
		outbox.WithBatchSize(cfg.Kafka.BatchSize),
		outbox.WithLogger(log),
		outbox.WithMetrics(cm),
	)
	return nil
}

func openStore(ctx context.Context, cfg config.Store) (consignmentStore, *sql.DB, error) {
	switch cfg.Backend {
	case "memory":
		return consignmentstore.NewInMemory(), nil, nil
	case "postgres":
		db, err := database.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		st := consignmentstore.NewPostgres(db)
		if err := st.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return st, db, nil
	case "sqlite":
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		st := consignmentstore.NewSQLite(db)
		if err := st.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return st, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func openLedger(cfg config.Ledger, log *slog.Logger) (ledger.Client, error) {
	switch cfg.Backend {
	case "stub":
		return stub.New(), nil
	case "chain":
		return chain.New(chain.RequireSignature())
	case "rpc":
		if cfg.RPCEndpoint == "" {
			return nil, fmt.Errorf("LEDGER_RPC_URL is required for the rpc ledger backend")
		}
		breaker := circuit.New("ledger-rpc",
			circuit.WithFailureThreshold(cfg.BreakerFailures),
			circuit.WithCooldown(cfg.BreakerCooldown),
		)
		return ledger.NewGuardedClient(rpc.New(cfg.RPCEndpoint), breaker, log), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// loadSigner derives the operator key from a seed, or generates an
// ephemeral one for development.
func loadSigner(seed string) (*signer.Schnorr, error) {
	if seed == "" {
		return signer.Generate()
	}
	return signer.FromSeed([]byte(seed))
}

func openPublisher(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (outbox.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		log.Info("no kafka brokers configured, movement events will be logged")
		return outbox.LogPublisher{Logger: log}, nil
	}
	kp, err := outbox.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, err
	}
	if err := kp.EnsureTopic(ctx, 3, 1); err != nil {
		log.Warn("could not ensure movements topic", "topic", cfg.Topic, "error", err)
	}
	return kp, nil
}
