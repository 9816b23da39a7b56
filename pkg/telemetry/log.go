// Package telemetry records per-call metadata in a bounded in-memory log and
// derives cost estimates and aggregate statistics from it.
package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of entries kept when none is configured.
const DefaultCapacity = 200

// Entry describes one provider attempt: a primary or fallback call, a shadow
// call, or the terminal degrade event.
type Entry struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id"`
	ModelID      string    `json:"model_id"`
	LatencyMs    int64     `json:"latency_ms"`
	TokensIn     int       `json:"tokens_in,omitempty"`
	TokensOut    int       `json:"tokens_out,omitempty"`
	CostEstimate float64   `json:"cost_estimate"`
	ValidJSON    *bool     `json:"valid_json,omitempty"`
	Repaired     bool      `json:"repaired"`
	OK           bool      `json:"ok"`
	Fallback     bool      `json:"fallback,omitempty"`
	Shadow       bool      `json:"shadow,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Log is a fixed-capacity circular buffer. When full, recording evicts the
// oldest entry first. It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	buf     []Entry
	start   int
	size    int
	metrics *Metrics
	now     func() time.Time
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithMetrics mirrors every recorded entry into Prometheus collectors.
func WithMetrics(m *Metrics) LogOption {
	return func(l *Log) {
		l.metrics = m
	}
}

// WithNow overrides the timestamp source.
func WithNow(now func() time.Time) LogOption {
	return func(l *Log) {
		l.now = now
	}
}

// NewLog creates a log holding at most capacity entries. A non-positive
// capacity uses DefaultCapacity.
func NewLog(capacity int, opts ...LogOption) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{
		buf: make([]Entry, capacity),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends e, assigning an id and timestamp when missing, and returns
// the stored entry.
func (l *Log) Record(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	l.mu.Lock()
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	idx := (l.start + l.size) % len(l.buf)
	if l.size == len(l.buf) {
		l.start = (l.start + 1) % len(l.buf)
	} else {
		l.size++
	}
	l.buf[idx] = e
	l.mu.Unlock()

	l.metrics.observe(e)
	return e
}

// Entries returns the retained entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

// Len reports the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity reports the buffer bound.
func (l *Log) Capacity() int {
	return len(l.buf)
}

// Analytics aggregates the current contents.
func (l *Log) Analytics() Analytics {
	return Summarize(l.Entries())
}
