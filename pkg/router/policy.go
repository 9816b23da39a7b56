package router

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zen-systems/modelgate/pkg/config"
)

// Policy resolves tasks to model pairs. It wraps a loaded RoutingPolicy and
// the process-wide environment overrides; both are read-only after
// construction so a Policy is safe for concurrent use.
type Policy struct {
	policy          *config.RoutingPolicy
	modeOverride    config.Mode
	latencyOverride time.Duration
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithModeOverride applies a process-wide mode ranked below explicit and
// per-task modes and above the policy default.
func WithModeOverride(mode config.Mode) PolicyOption {
	return func(p *Policy) {
		p.modeOverride = mode
	}
}

// WithLatencyOverride replaces every policy latency budget.
func WithLatencyOverride(d time.Duration) PolicyOption {
	return func(p *Policy) {
		p.latencyOverride = d
	}
}

// NewPolicy validates rp and returns a resolver over it.
func NewPolicy(rp *config.RoutingPolicy, opts ...PolicyOption) (*Policy, error) {
	if err := config.ValidateRoutingPolicy(rp); err != nil {
		return nil, err
	}
	p := &Policy{policy: rp}
	for _, opt := range opts {
		opt(p)
	}
	if p.modeOverride != "" {
		if _, ok := rp.Modes[p.modeOverride]; !ok {
			return nil, &config.ConfigError{Field: config.EnvMode, Err: fmt.Errorf("mode %q has no model table entry", p.modeOverride)}
		}
	}
	if p.latencyOverride < 0 {
		return nil, &config.ConfigError{Field: config.EnvTimeoutMs, Err: errors.New("must not be negative")}
	}
	return p, nil
}

// RouteOptions carries the request properties that influence routing.
type RouteOptions struct {
	TokensIn     int
	RequireJSON  bool
	ExplicitMode config.Mode
}

// Resolve picks the mode, model pair and latency budget for taskID.
// A task with no explicit, per-task, environment or default mode is a
// ConfigError, as is a mode missing from the model table.
func (p *Policy) Resolve(taskID string, opts RouteOptions) (*Decision, error) {
	mode, source, err := p.resolveMode(taskID, opts.ExplicitMode)
	if err != nil {
		return nil, err
	}

	route, ok := p.policy.Modes[mode]
	if !ok {
		return nil, &config.ConfigError{Field: "policy.modes", Err: fmt.Errorf("mode %q resolved for task %q has no model table entry", mode, taskID)}
	}

	d := &Decision{
		TaskID:     taskID,
		Mode:       mode,
		ModeSource: source,
		Primary:    p.policy.Aliases.Resolve(route.Primary),
		Fallback:   p.policy.Aliases.Resolve(route.Fallback),
		MaxLatency: p.maxLatency(route),
		Reasons:    []string{fmt.Sprintf("mode %s from %s", mode, source)},
	}

	threshold := p.policy.LongContext.ThresholdTokens
	if threshold <= 0 {
		threshold = config.DefaultLongContextThreshold
	}
	if mode == config.ModeQuality && opts.TokensIn > threshold {
		model := p.policy.LongContext.Model
		if model == "" {
			model = config.DefaultLongContextModel
		}
		d.Primary = p.policy.Aliases.Resolve(model)
		d.LongContext = true
		d.Reasons = append(d.Reasons, fmt.Sprintf("long context: %d tokens > %d", opts.TokensIn, threshold))
	}
	return d, nil
}

func (p *Policy) resolveMode(taskID string, explicit config.Mode) (config.Mode, string, error) {
	if explicit != "" {
		if !explicit.Valid() {
			return "", "", &config.ConfigError{Field: "request.mode", Err: fmt.Errorf("unknown mode %q", explicit)}
		}
		return explicit, ModeSourceExplicit, nil
	}
	if task, ok := p.policy.Tasks[taskID]; ok && task.Mode != "" {
		return task.Mode, ModeSourceTask, nil
	}
	if p.modeOverride != "" {
		return p.modeOverride, ModeSourceEnv, nil
	}
	if p.policy.Defaults.Mode != "" {
		return p.policy.Defaults.Mode, ModeSourceDefault, nil
	}
	return "", "", &config.ConfigError{Field: "policy.tasks", Err: fmt.Errorf("task %q has no configured mode and no default mode", taskID)}
}

func (p *Policy) maxLatency(route config.ModeRoute) time.Duration {
	switch {
	case p.latencyOverride > 0:
		return p.latencyOverride
	case route.MaxLatencyMs > 0:
		return time.Duration(route.MaxLatencyMs) * time.Millisecond
	case p.policy.Defaults.MaxLatencyMs > 0:
		return time.Duration(p.policy.Defaults.MaxLatencyMs) * time.Millisecond
	default:
		return config.DefaultMaxLatencyMs * time.Millisecond
	}
}

// Routes resolves every known task plus any task named only in the policy.
// Tasks that cannot be resolved are listed with their error.
func (p *Policy) Routes() []RouteInfo {
	tasks := append([]string(nil), KnownTasks...)
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		seen[t] = true
	}
	for _, name := range sortedTaskNames(p.policy.Tasks) {
		if !seen[name] {
			tasks = append(tasks, name)
		}
	}

	routes := make([]RouteInfo, 0, len(tasks))
	for _, task := range tasks {
		d, err := p.Resolve(task, RouteOptions{})
		if err != nil {
			routes = append(routes, RouteInfo{TaskID: task, Error: err.Error()})
			continue
		}
		routes = append(routes, RouteInfo{
			TaskID:       task,
			Mode:         d.Mode,
			ModeSource:   d.ModeSource,
			Primary:      d.Primary,
			Fallback:     d.Fallback,
			MaxLatencyMs: d.MaxLatencyMs(),
		})
	}
	return routes
}

// Version returns the loaded policy version.
func (p *Policy) Version() string {
	return p.policy.Version
}

func sortedTaskNames(tasks map[string]config.TaskRoute) []string {
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
