package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := FromEnv()
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, "memory", cfg.Store.Backend)
		assert.Equal(t, 3, cfg.Ledger.MaxAttempts)
		assert.Equal(t, time.Second, cfg.Ledger.BaseDelay)
		assert.Equal(t, 5, cfg.ARC.MaxAttempts)
		assert.Equal(t, "EU", cfg.ARC.Jurisdiction)
		assert.Empty(t, cfg.Kafka.Brokers)
		assert.Equal(t, 5, cfg.Ledger.BreakerFailures)
		assert.Equal(t, 120, cfg.Limits.RequestsPerWindow)
		assert.Equal(t, time.Minute, cfg.Limits.Window)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
		t.Setenv("LEDGER_BASE_DELAY", "250ms")
		t.Setenv("ARC_JURISDICTION", "fr")
		t.Setenv("LEDGER_MAX_ATTEMPTS", "not-a-number")
		t.Setenv("RATE_LIMIT_REQUESTS", "10")

		cfg := FromEnv()
		assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, 250*time.Millisecond, cfg.Ledger.BaseDelay)
		assert.Equal(t, "FR", cfg.ARC.Jurisdiction)
		assert.Equal(t, 3, cfg.Ledger.MaxAttempts)
		assert.Equal(t, 10, cfg.Limits.RequestsPerWindow)
	})
}

func TestSubmissionBudget(t *testing.T) {
	l := Ledger{MaxAttempts: 3, BaseDelay: time.Second, AttemptTimeout: 10 * time.Second}
	assert.Equal(t, 33*time.Second, l.SubmissionBudget())

	l.MaxAttempts = 1
	assert.Equal(t, 10*time.Second, l.SubmissionBudget())
}
