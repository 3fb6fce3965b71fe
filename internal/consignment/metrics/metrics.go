package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the consignment lifecycle.
type Metrics struct {
	Transitions       *prometheus.CounterVec
	Failures          *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OutboxPublished   prometheus.Counter
	OutboxFailures    prometheus.Counter
}

// New registers consignment metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "emcs_consignment_transitions_total",
			Help: "Successful lifecycle operations by type (created, dispatched, received)",
		}, []string{"transition"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "emcs_consignment_failures_total",
			Help: "Failed lifecycle operations by operation and error code",
		}, []string{"operation", "code"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emcs_consignment_operation_duration_seconds",
			Help:    "Duration of lifecycle operations including ledger round trips",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "emcs_outbox_published_total",
			Help: "Movement events published by the outbox relay",
		}),
		OutboxFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "emcs_outbox_failures_total",
			Help: "Outbox relay batches that failed to publish",
		}),
	}
}

func (m *Metrics) IncTransition(transition string) {
	if m != nil {
		m.Transitions.WithLabelValues(transition).Inc()
	}
}

func (m *Metrics) IncFailure(operation, code string) {
	if m != nil {
		m.Failures.WithLabelValues(operation, code).Inc()
	}
}

// ObserveOperation records the duration since start.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m != nil {
		m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) AddOutboxPublished(n int) {
	if m != nil {
		m.OutboxPublished.Add(float64(n))
	}
}

func (m *Metrics) IncOutboxFailures() {
	if m != nil {
		m.OutboxFailures.Inc()
	}
}
