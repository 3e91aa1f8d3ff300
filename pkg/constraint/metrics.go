package constraint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for constraint enforcement.
type Metrics struct {
	// Constraint checks by outcome
	checks *prometheus.CounterVec

	// CAS retries per constraint
	casRetries *prometheus.CounterVec

	// Consensus failures per constraint
	consensusFailures *prometheus.CounterVec

	// Check latency
	checkDuration *prometheus.HistogramVec

	// Remaining bucket balance
	tokensRemaining *prometheus.GaugeVec
}

// NewMetrics creates a Metrics instance registered on the default
// registerer.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a Metrics instance registered on reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_constraint_checks_total",
				Help: "Total number of constraint checks performed",
			},
			[]string{"constraint_id", "outcome"},
		),

		casRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_constraint_cas_retries_total",
				Help: "Total number of compare-and-swap retries",
			},
			[]string{"constraint_id"},
		),

		consensusFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_constraint_consensus_failures_total",
				Help: "Total number of checks that exhausted the CAS retry budget",
			},
			[]string{"constraint_id"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "saturn_constraint_check_duration_seconds",
				Help:    "Latency of constraint checks",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"constraint_id"},
		),

		tokensRemaining: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "saturn_constraint_tokens_remaining",
				Help: "Bucket balance after the most recent check",
			},
			[]string{"constraint_id", "subject_id"},
		),
	}
}

// RecordCheck records one completed constraint check.
func (m *Metrics) RecordCheck(constraintID string, outcome Outcome, seconds float64) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(constraintID, string(outcome)).Inc()
	m.checkDuration.WithLabelValues(constraintID).Observe(seconds)
}

// RecordRetries records CAS retries spent on one check.
func (m *Metrics) RecordRetries(constraintID string, retries int) {
	if m == nil || retries == 0 {
		return
	}
	m.casRetries.WithLabelValues(constraintID).Add(float64(retries))
}

// RecordConsensusFailure records an exhausted retry budget.
func (m *Metrics) RecordConsensusFailure(constraintID string) {
	if m == nil {
		return
	}
	m.consensusFailures.WithLabelValues(constraintID).Inc()
}

// RecordTokens records a bucket balance observation.
func (m *Metrics) RecordTokens(constraintID, subjectID string, tokens float64) {
	if m == nil {
		return
	}
	m.tokensRemaining.WithLabelValues(constraintID, subjectID).Set(tokens)
}
