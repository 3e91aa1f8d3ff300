package decision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the orchestrator.
type Metrics struct {
	decisions        *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	compilations     *prometheus.CounterVec
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
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_decisions_total",
				Help: "Total number of decisions by verdict and reason",
			},
			[]string{"policy_id", "verdict", "reason"},
		),

		decisionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "saturn_decision_duration_seconds",
				Help:    "End to end evaluation latency",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"policy_id"},
		),

		cacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "saturn_policy_cache_hits_total",
				Help: "Compiled policy cache hits",
			},
		),

		cacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "saturn_policy_cache_misses_total",
				Help: "Compiled policy cache misses",
			},
		),

		compilations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_policy_compilations_total",
				Help: "Policy compilations by result",
			},
			[]string{"policy_id", "result"},
		),
	}
}

// RecordDecision records one completed decision.
func (m *Metrics) RecordDecision(policyID string, resp *Response) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(policyID, string(resp.Verdict), string(resp.Reason)).Inc()
	m.decisionDuration.WithLabelValues(policyID).Observe(resp.Duration.Seconds())
}

// RecordCacheHit records a compiled-policy cache hit or miss.
func (m *Metrics) RecordCacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordCompilation records one compilation attempt.
func (m *Metrics) RecordCompilation(policyID string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.compilations.WithLabelValues(policyID, result).Inc()
}
