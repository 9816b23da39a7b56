package telemetry

// Stat is a per-task or per-model breakdown.
type Stat struct {
	Count        int     `json:"count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	TotalCost    float64 `json:"total_cost"`
	Failures     int     `json:"failures"`
}

// Analytics summarizes a set of entries.
type Analytics struct {
	TotalCalls    int             `json:"total_calls"`
	AvgLatencyMs  float64         `json:"avg_latency_ms"`
	TotalCost     float64         `json:"total_cost"`
	ByTask        map[string]Stat `json:"by_task"`
	ByModel       map[string]Stat `json:"by_model"`
	RepairRate    float64         `json:"repair_rate"`
	JSONValidRate float64         `json:"json_valid_rate"`
	FailureRate   float64         `json:"failure_rate"`
}

// Summarize computes Analytics over entries. JSONValidRate counts only
// entries that expected JSON, and only first-attempt validity: a repaired
// entry does not count as valid.
func Summarize(entries []Entry) Analytics {
	a := Analytics{
		ByTask:  make(map[string]Stat),
		ByModel: make(map[string]Stat),
	}
	if len(entries) == 0 {
		return a
	}

	var (
		latencySum float64
		repaired   int
		failed     int
		jsonCalls  int
		jsonValid  int
	)
	taskLatency := make(map[string]float64)
	modelLatency := make(map[string]float64)

	for _, e := range entries {
		latency := float64(e.LatencyMs)
		latencySum += latency
		a.TotalCost += e.CostEstimate
		if e.Repaired {
			repaired++
		}
		if !e.OK {
			failed++
		}
		if e.ValidJSON != nil {
			jsonCalls++
			if *e.ValidJSON && !e.Repaired {
				jsonValid++
			}
		}

		a.ByTask[e.TaskID] = accumulate(a.ByTask[e.TaskID], e)
		taskLatency[e.TaskID] += latency
		a.ByModel[e.ModelID] = accumulate(a.ByModel[e.ModelID], e)
		modelLatency[e.ModelID] += latency
	}

	n := float64(len(entries))
	a.TotalCalls = len(entries)
	a.AvgLatencyMs = latencySum / n
	a.RepairRate = float64(repaired) / n
	a.FailureRate = float64(failed) / n
	if jsonCalls > 0 {
		a.JSONValidRate = float64(jsonValid) / float64(jsonCalls)
	}

	for task, s := range a.ByTask {
		s.AvgLatencyMs = taskLatency[task] / float64(s.Count)
		a.ByTask[task] = s
	}
	for model, s := range a.ByModel {
		s.AvgLatencyMs = modelLatency[model] / float64(s.Count)
		a.ByModel[model] = s
	}
	return a
}

func accumulate(s Stat, e Entry) Stat {
	s.Count++
	s.TotalCost += e.CostEstimate
	if !e.OK {
		s.Failures++
	}
	return s
}
