package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes call telemetry as Prometheus collectors. A nil *Metrics is
// a valid no-op.
type Metrics struct {
	calls        *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	cost         *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelgate_calls_total",
				Help: "Provider attempts by task, model, outcome and shadow flag.",
			},
			[]string{"task", "model", "status", "shadow"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modelgate_call_latency_seconds",
				Help:    "Provider attempt latency in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"task", "model"},
		),
		cost: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelgate_cost_usd_total",
				Help: "Estimated spend in USD.",
			},
			[]string{"model"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelgate_cache_lookups_total",
				Help: "Response cache lookups by result.",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) observe(e Entry) {
	if m == nil {
		return
	}
	status := "ok"
	if !e.OK {
		status = "error"
	}
	m.calls.WithLabelValues(e.TaskID, e.ModelID, status, strconv.FormatBool(e.Shadow)).Inc()
	m.latency.WithLabelValues(e.TaskID, e.ModelID).Observe(float64(e.LatencyMs) / 1000)
	if e.CostEstimate > 0 {
		m.cost.WithLabelValues(e.ModelID).Add(e.CostEstimate)
	}
}

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
