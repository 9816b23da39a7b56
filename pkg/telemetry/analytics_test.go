package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestSummarize(t *testing.T) {
	entries := []Entry{
		{TaskID: "topic_map", ModelID: "a", LatencyMs: 100, CostEstimate: 0.01, ValidJSON: boolPtr(true), OK: true},
		{TaskID: "topic_map", ModelID: "a", LatencyMs: 300, CostEstimate: 0.03, ValidJSON: boolPtr(false), Repaired: true, OK: true},
		{TaskID: "topic_map", ModelID: "b", LatencyMs: 200, ValidJSON: boolPtr(false), OK: false, Error: "boom"},
		{TaskID: "overview_summarize", ModelID: "b", LatencyMs: 400, CostEstimate: 0.02, OK: true},
	}

	a := Summarize(entries)

	assert.Equal(t, 4, a.TotalCalls)
	assert.InDelta(t, 250, a.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 0.06, a.TotalCost, 1e-9)
	assert.InDelta(t, 0.25, a.RepairRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, a.JSONValidRate, 1e-9)
	assert.InDelta(t, 0.25, a.FailureRate, 1e-9)

	topic := a.ByTask["topic_map"]
	assert.Equal(t, 3, topic.Count)
	assert.InDelta(t, 200, topic.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 0.04, topic.TotalCost, 1e-9)
	assert.Equal(t, 1, topic.Failures)

	modelB := a.ByModel["b"]
	assert.Equal(t, 2, modelB.Count)
	assert.InDelta(t, 300, modelB.AvgLatencyMs, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	a := Summarize(nil)
	assert.Zero(t, a.TotalCalls)
	assert.Zero(t, a.AvgLatencyMs)
	assert.NotNil(t, a.ByTask)
	assert.NotNil(t, a.ByModel)
}
