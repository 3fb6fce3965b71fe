package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for reference code issuance.
type Metrics struct {
	Issued           prometheus.Counter
	Collisions       prometheus.Counter
	LookupFailures   prometheus.Counter
	ExhaustedRetries prometheus.Counter
}

// New registers ARC metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Issued: f.NewCounter(prometheus.CounterOpts{
			Name: "emcs_arc_issued_total",
			Help: "Reference codes issued",
		}),
		Collisions: f.NewCounter(prometheus.CounterOpts{
			Name: "emcs_arc_collisions_total",
			Help: "Generated reference codes discarded because they already existed",
		}),
		LookupFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "emcs_arc_lookup_failures_total",
			Help: "Uniqueness lookups that failed and were treated as not found",
		}),
		ExhaustedRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "emcs_arc_exhausted_total",
			Help: "Issuance attempts that ran out of retries",
		}),
	}
}

func (m *Metrics) IncIssued() {
	if m != nil {
		m.Issued.Inc()
	}
}

func (m *Metrics) IncCollisions() {
	if m != nil {
		m.Collisions.Inc()
	}
}

func (m *Metrics) IncLookupFailures() {
	if m != nil {
		m.LookupFailures.Inc()
	}
}

func (m *Metrics) IncExhausted() {
	if m != nil {
		m.ExhaustedRetries.Inc()
	}
}
