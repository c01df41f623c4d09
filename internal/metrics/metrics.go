// ABOUTME: Prometheus metrics for the authentication gate
// ABOUTME: Counts decisions per outcome and times each decision

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hawkgate"

// Auth holds the authenticator's collectors.
type Auth struct {
	Decisions       *prometheus.CounterVec
	DecisionSeconds *prometheus.HistogramVec
	SessionsCreated prometheus.Counter
	StorageErrors   *prometheus.CounterVec
}

// NewAuth registers the auth collectors with reg. A nil reg uses the default
// registerer.
func NewAuth(reg prometheus.Registerer) *Auth {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Auth{
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_decisions_total",
				Help:      "Authentication decisions by outcome",
			},
			[]string{"outcome"},
		),
		DecisionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "auth_decision_duration_seconds",
				Help:      "Time to reach an authentication decision",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"outcome"},
		),
		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_created_total",
				Help:      "Sessions provisioned for first-contact requests",
			},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Session store failures by operation",
			},
			[]string{"op"},
		),
	}
}

// ObserveDecision records one decision. Safe on a nil receiver.
func (m *Auth) ObserveDecision(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome).Inc()
	m.DecisionSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// SessionCreated counts a provisioned session. Safe on a nil receiver.
func (m *Auth) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// StorageError counts a store failure for op ("lookup", "create", "bind").
// Safe on a nil receiver.
func (m *Auth) StorageError(op string) {
	if m == nil {
		return
	}
	m.StorageErrors.WithLabelValues(op).Inc()
}
