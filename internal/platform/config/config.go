package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process level configuration. FromEnv keeps main lean.
type Config struct {
	Server   Server
	Log      Log
	Store    Store
	Redis    RedisConfig
	Kafka    KafkaConfig
	Ledger   Ledger
	ARC      ARC
	Notary   Notary
	Limits   Limits
	Shutdown time.Duration
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
}

type Log struct {
	Level  string
	Format string // "json" or "text"
}

// Store selects the consignment persistence backend.
type Store struct {
	Backend     string // memory, postgres, sqlite
	PostgresDSN string
	SQLitePath  string
}

// RedisConfig is optional; an empty URL disables Redis-backed ARC reservation.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig is optional; no brokers means movement events are only logged.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	PollInterval time.Duration
	BatchSize    int
}

// Ledger configures the ledger client and the retrying executor.
type Ledger struct {
	Backend        string // stub, chain, rpc
	RPCEndpoint    string
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
	SignerSeed     string

	// Circuit breaker around remote backends.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// ARC configures reference code issuance.
type ARC struct {
	Jurisdiction string
	MaxAttempts  int
}

// Notary selects the document digest.
type Notary struct {
	Digest string // sha256 or blake2b
}

// SubmissionBudget is the longest one executor submission can take: every
// attempt running into its timeout plus the backoff waits between them.
func (l Ledger) SubmissionBudget() time.Duration {
	budget := time.Duration(l.MaxAttempts) * l.AttemptTimeout
	delay := l.BaseDelay
	for i := 1; i < l.MaxAttempts; i++ {
		budget += delay
		delay *= 2
	}
	return budget
}

// Limits bounds per-party API usage.
type Limits struct {
	RequestsPerWindow int
	Window            time.Duration
}

// FromEnv builds a Config from environment variables with development defaults.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr: getEnv("EMCS_ADDR", ":8080"),
			// Use a default for development - should be overridden in production
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     getEnv("JWT_ISSUER", "emcs"),
		},
		Log: Log{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Store: Store{
			Backend:     getEnv("STORE_BACKEND", "memory"),
			PostgresDSN: os.Getenv("DATABASE_URL"),
			SQLitePath:  getEnv("SQLITE_PATH", "consignments.db"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:        getEnv("KAFKA_MOVEMENTS_TOPIC", "consignment.movements"),
			PollInterval: getDuration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    getInt("OUTBOX_BATCH_SIZE", 100),
		},
		Ledger: Ledger{
			Backend:        getEnv("LEDGER_BACKEND", "chain"),
			RPCEndpoint:    os.Getenv("LEDGER_RPC_URL"),
			MaxAttempts:    getInt("LEDGER_MAX_ATTEMPTS", 3),
			BaseDelay:      getDuration("LEDGER_BASE_DELAY", time.Second),
			AttemptTimeout: getDuration("LEDGER_ATTEMPT_TIMEOUT", 10*time.Second),
			SignerSeed:     os.Getenv("LEDGER_SIGNER_SEED"),

			BreakerFailures: getInt("LEDGER_BREAKER_FAILURES", 5),
			BreakerCooldown: getDuration("LEDGER_BREAKER_COOLDOWN", 10*time.Second),
		},
		ARC: ARC{
			Jurisdiction: strings.ToUpper(getEnv("ARC_JURISDICTION", "EU")),
			MaxAttempts:  getInt("ARC_MAX_ATTEMPTS", 5),
		},
		Notary: Notary{
			Digest: getEnv("NOTARY_DIGEST", "sha256"),
		},
		Limits: Limits{
			RequestsPerWindow: getInt("RATE_LIMIT_REQUESTS", 120),
			Window:            getDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Shutdown: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
