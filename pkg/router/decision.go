package router

import (
	"time"

	"github.com/zen-systems/modelgate/pkg/config"
)

// Where the resolved mode came from.
const (
	ModeSourceExplicit = "explicit"
	ModeSourceTask     = "task"
	ModeSourceEnv      = "env"
	ModeSourceDefault  = "default"
)

// Decision is the resolved route for one request.
type Decision struct {
	TaskID      string        `json:"task_id"`
	Mode        config.Mode   `json:"mode"`
	ModeSource  string        `json:"mode_source"`
	Primary     string        `json:"primary"`
	Fallback    string        `json:"fallback"`
	MaxLatency  time.Duration `json:"-"`
	LongContext bool          `json:"long_context,omitempty"`
	Reasons     []string      `json:"reasons,omitempty"`
}

// MaxLatencyMs is MaxLatency in milliseconds.
func (d *Decision) MaxLatencyMs() int64 {
	return d.MaxLatency.Milliseconds()
}

// RouteInfo describes the resolved route of one task for listings.
type RouteInfo struct {
	TaskID       string      `json:"task_id"`
	Mode         config.Mode `json:"mode,omitempty"`
	ModeSource   string      `json:"mode_source,omitempty"`
	Primary      string      `json:"primary,omitempty"`
	Fallback     string      `json:"fallback,omitempty"`
	MaxLatencyMs int64       `json:"max_latency_ms,omitempty"`
	Error        string      `json:"error,omitempty"`
}
