// Package metrics defines the prometheus collectors exported by securecore hosts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for guard decisions.
const (
	OutcomeAllowed = "allowed"
	OutcomeLimited = "limited"
	OutcomeInvalid = "invalid"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	GuardDecisions     *prometheus.CounterVec
	CSRFAttached       *prometheus.CounterVec
	SessionStoreErrors *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		GuardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "securecore_guard_decisions_total",
				Help: "Total number of rate limit decisions made by the guard",
			},
			[]string{"action", "outcome"},
		),
		CSRFAttached: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "securecore_csrf_attached_total",
				Help: "Total number of CSRF tokens attached to outgoing submissions",
			},
			[]string{"action"},
		),
		SessionStoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "securecore_session_store_errors_total",
				Help: "Total number of session store operation failures",
			},
			[]string{"backend", "op"},
		),
	}
}

// ObserveDecision counts one limiter decision for action.
func (m *Metrics) ObserveDecision(action string, allowed bool) {
	if m == nil {
		return
	}
	outcome := OutcomeLimited
	if allowed {
		outcome = OutcomeAllowed
	}
	m.GuardDecisions.WithLabelValues(action, outcome).Inc()
}

// ObserveInvalid counts one submission of action rejected by its form
// schema before reaching the limiter.
func (m *Metrics) ObserveInvalid(action string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(action, OutcomeInvalid).Inc()
}

// ObserveAttached counts one token attached to a submission for action.
func (m *Metrics) ObserveAttached(action string) {
	if m == nil {
		return
	}
	m.CSRFAttached.WithLabelValues(action).Inc()
}

// ObserveStoreError counts one failed session store operation.
func (m *Metrics) ObserveStoreError(backend, op string) {
	if m == nil {
		return
	}
	m.SessionStoreErrors.WithLabelValues(backend, op).Inc()
}
