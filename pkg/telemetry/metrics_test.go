package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetricsMirrorLog(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	log := NewLog(10, WithMetrics(m))

	log.Record(Entry{TaskID: "topic_map", ModelID: "a", LatencyMs: 120, CostEstimate: 0.5, OK: true})
	log.Record(Entry{TaskID: "topic_map", ModelID: "a", LatencyMs: 80, OK: false})
	log.Record(Entry{TaskID: "topic_map", ModelID: "b", OK: true, Shadow: true})

	assert.Equal(t, 1.0, counterValue(t, m.calls.WithLabelValues("topic_map", "a", "ok", "false")))
	assert.Equal(t, 1.0, counterValue(t, m.calls.WithLabelValues("topic_map", "a", "error", "false")))
	assert.Equal(t, 1.0, counterValue(t, m.calls.WithLabelValues("topic_map", "b", "ok", "true")))
	assert.Equal(t, 0.5, counterValue(t, m.cost.WithLabelValues("a")))

	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	assert.Equal(t, 2.0, counterValue(t, m.cacheLookups.WithLabelValues("miss")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"modelgate_calls_total", "modelgate_call_latency_seconds", "modelgate_cost_usd_total", "modelgate_cache_lookups_total"} {
		assert.True(t, names[want], want)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheLookup(true)
		m.observe(Entry{})
	})
}
