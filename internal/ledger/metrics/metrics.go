package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for ledger calls made through the executor.
type Metrics struct {
	Attempts  *prometheus.CounterVec
	Exhausted *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
}

// New registers ledger metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "emcs_ledger_attempts_total",
			Help: "Ledger call attempts by operation and outcome",
		}, []string{"operation", "outcome"}),
		Exhausted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "emcs_ledger_exhausted_total",
			Help: "Ledger calls that failed on every attempt",
		}, []string{"operation"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emcs_ledger_attempt_duration_seconds",
			Help:    "Duration of a single ledger call attempt",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) ObserveAttempt(operation string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.Attempts.WithLabelValues(operation, outcome).Inc()
	m.Latency.WithLabelValues(operation).Observe(took.Seconds())
}

func (m *Metrics) IncExhausted(operation string) {
	if m != nil {
		m.Exhausted.WithLabelValues(operation).Inc()
	}
}
