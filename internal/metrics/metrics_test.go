package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestAuth_ObserveDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuth(reg)

	m.ObserveDecision("accepted", time.Millisecond)
	m.ObserveDecision("accepted", time.Millisecond)
	m.ObserveDecision("unauthenticated", time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, reg, "hawkgate_auth_decisions_total", map[string]string{"outcome": "accepted"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "hawkgate_auth_decisions_total", map[string]string{"outcome": "unauthenticated"}))
}

func TestAuth_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuth(reg)

	m.SessionCreated()
	m.StorageError("lookup")

	assert.Equal(t, 1.0, counterValue(t, reg, "hawkgate_sessions_created_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "hawkgate_storage_errors_total", map[string]string{"op": "lookup"}))
}

func TestAuth_NilSafe(t *testing.T) {
	var m *Auth
	m.ObserveDecision("accepted", time.Millisecond)
	m.SessionCreated()
	m.StorageError("create")
}
