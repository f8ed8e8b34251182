// Package metrics exposes Prometheus instrumentation for the decisions,
// action-state transitions, and circuit breaker state the ambient
// /metrics endpoint scrapes. Adapted from the teacher's
// internal/ai/chat.AIMetrics singleton pattern.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics manages the core's Prometheus instrumentation.
type Metrics struct {
	policyDecisions   *prometheus.CounterVec
	actionTransitions *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
	advisoryLatency    prometheus.Histogram
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the singleton Metrics instance, registering its collectors on
// first call.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{
		policyDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "watchkeeper",
				Subsystem: "policy",
				Name:      "decisions_total",
				Help:      "Total policy decisions by reason code and tool key",
			},
			[]string{"reason_code", "tool_key"},
		),
		actionTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "watchkeeper",
				Subsystem: "actions",
				Name:      "transitions_total",
				Help:      "Total action state transitions by resulting status",
			},
			[]string{"status"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "watchkeeper",
				Subsystem: "advisory",
				Name:      "circuit_breaker_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open) by breaker name",
			},
			[]string{"breaker"},
		),
		advisoryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "watchkeeper",
				Subsystem: "advisory",
				Name:      "proposal_latency_seconds",
				Help:      "Latency of Advisory Client proposal generation",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	prometheus.MustRegister(
		m.policyDecisions,
		m.actionTransitions,
		m.breakerState,
		m.advisoryLatency,
	)

	return m
}

// RecordPolicyDecision records one Router/Policy Engine verdict.
func (m *Metrics) RecordPolicyDecision(reasonCode, toolKey string) {
	m.policyDecisions.WithLabelValues(reasonCode, toolKey).Inc()
}

// RecordActionTransition records an action reaching a terminal or
// intermediate status.
func (m *Metrics) RecordActionTransition(status string) {
	m.actionTransitions.WithLabelValues(status).Inc()
}

// SetBreakerState publishes a circuit breaker's current state as a gauge
// (0=closed, 1=open, 2=half-open), matching circuit.State's ordering.
func (m *Metrics) SetBreakerState(breakerName string, state int) {
	m.breakerState.WithLabelValues(breakerName).Set(float64(state))
}

// ObserveAdvisoryLatencySeconds records one Advisory Client call's latency.
func (m *Metrics) ObserveAdvisoryLatencySeconds(seconds float64) {
	m.advisoryLatency.Observe(seconds)
}
