// Package metrics provides observability for the admission module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the admission module's Prometheus collectors.
type Metrics struct {
	// Admission outcomes by status and role tier.
	Decisions *prometheus.CounterVec

	// Domain matcher verdicts on submission.
	DomainMatches *prometheus.CounterVec
}

// New creates and registers the admission metrics.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civicflow_admission_decisions_total",
			Help: "Role request decisions by resulting status and role tier",
		}, []string{"status", "tier"}),

		DomainMatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civicflow_admission_domain_match_total",
			Help: "Domain allow-list matcher verdicts at submission",
		}, []string{"matched"}),
	}
}

// IncrementDecision records a decision outcome.
func (m *Metrics) IncrementDecision(status, tier string) {
	if m != nil {
		m.Decisions.WithLabelValues(status, tier).Inc()
	}
}

// IncrementDomainMatch records a matcher verdict.
func (m *Metrics) IncrementDomainMatch(matched bool) {
	if m != nil {
		label := "false"
		if matched {
			label = "true"
		}
		m.DomainMatches.WithLabelValues(label).Inc()
	}
}
