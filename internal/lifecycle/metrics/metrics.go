// Package metrics provides observability for the lifecycle module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the lifecycle module's Prometheus collectors.
type Metrics struct {
	// Advance outcomes by entity kind and outcome
	// (advanced, checklist_incomplete, terminal, conflict).
	AdvanceOutcome *prometheus.CounterVec

	// Checklist gate evaluations by result.
	GateResult *prometheus.CounterVec

	// End-to-end advance latency including retries.
	AdvanceLatency prometheus.Histogram
}

// New creates and registers the lifecycle metrics.
func New() *Metrics {
	return &Metrics{
		AdvanceOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civicflow_lifecycle_advance_total",
			Help: "Lifecycle advance attempts by entity kind and outcome",
		}, []string{"kind", "outcome"}),

		GateResult: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civicflow_checklist_gate_total",
			Help: "Checklist gate evaluations by result",
		}, []string{"passed"}),

		AdvanceLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "civicflow_lifecycle_advance_duration_seconds",
			Help:    "Duration of lifecycle advance calls including conflict retries",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementOutcome records an advance outcome.
func (m *Metrics) IncrementOutcome(kind, outcome string) {
	if m != nil {
		m.AdvanceOutcome.WithLabelValues(kind, outcome).Inc()
	}
}

// IncrementGate records a checklist gate result.
func (m *Metrics) IncrementGate(passed bool) {
	if m != nil {
		label := "false"
		if passed {
			label = "true"
		}
		m.GateResult.WithLabelValues(label).Inc()
	}
}

// ObserveAdvanceLatency records the total advance duration.
func (m *Metrics) ObserveAdvanceLatency(d time.Duration) {
	if m != nil {
		m.AdvanceLatency.Observe(d.Seconds())
	}
}
