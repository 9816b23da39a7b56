package router

import (
	"testing"
	"time"

	"github.com/zen-systems/modelgate/pkg/config"
)

func testRoutingPolicy() *config.RoutingPolicy {
	return &config.RoutingPolicy{
		Version: "test",
		Defaults: config.PolicyDefaults{
			Mode:         config.ModeBalanced,
			MaxLatencyMs: 30000,
		},
		Modes: map[config.Mode]config.ModeRoute{
			config.ModeQuality:  {Primary: "q-primary", Fallback: "q-fallback", MaxLatencyMs: 45000},
			config.ModeBalanced: {Primary: "b-primary", Fallback: "b-fallback"},
			config.ModeCheap:    {Primary: "cheap-alias", Fallback: "c-fallback"},
		},
		Tasks: map[string]config.TaskRoute{
			TaskTopicMap:     {Mode: config.ModeQuality},
			TaskQuizGenerate: {Mode: config.ModeCheap},
		},
		Aliases: config.ModelAliases{"cheap-alias": "c-primary"},
	}
}

func mustPolicy(t *testing.T, rp *config.RoutingPolicy, opts ...PolicyOption) *Policy {
	t.Helper()
	p, err := NewPolicy(rp, opts...)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	return p
}

func TestResolveModePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		opts     []PolicyOption
		task     string
		explicit config.Mode
		mode     config.Mode
		source   string
		primary  string
	}{
		{name: "explicit beats task", task: TaskTopicMap, explicit: config.ModeCheap, mode: config.ModeCheap, source: ModeSourceExplicit, primary: "c-primary"},
		{name: "task mode", task: TaskTopicMap, mode: config.ModeQuality, source: ModeSourceTask, primary: "q-primary"},
		{name: "task beats env", task: TaskQuizGenerate, opts: []PolicyOption{WithModeOverride(config.ModeQuality)}, mode: config.ModeCheap, source: ModeSourceTask, primary: "c-primary"},
		{name: "env beats default", task: TaskOther, opts: []PolicyOption{WithModeOverride(config.ModeQuality)}, mode: config.ModeQuality, source: ModeSourceEnv, primary: "q-primary"},
		{name: "default", task: TaskOther, mode: config.ModeBalanced, source: ModeSourceDefault, primary: "b-primary"},
		{name: "unknown task uses default", task: "freeform", mode: config.ModeBalanced, source: ModeSourceDefault, primary: "b-primary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustPolicy(t, testRoutingPolicy(), tt.opts...)
			d, err := p.Resolve(tt.task, RouteOptions{ExplicitMode: tt.explicit})
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if d.Mode != tt.mode || d.ModeSource != tt.source {
				t.Fatalf("expected %s from %s, got %s from %s", tt.mode, tt.source, d.Mode, d.ModeSource)
			}
			if d.Primary != tt.primary {
				t.Fatalf("expected primary %s, got %s", tt.primary, d.Primary)
			}
		})
	}
}

func TestResolveUnknownTaskWithoutDefaultFails(t *testing.T) {
	rp := testRoutingPolicy()
	rp.Defaults.Mode = ""
	p := mustPolicy(t, rp)

	if _, err := p.Resolve("freeform", RouteOptions{}); !config.IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if _, err := p.Resolve(TaskTopicMap, RouteOptions{}); err != nil {
		t.Fatalf("configured task should still resolve: %v", err)
	}

	withEnv := mustPolicy(t, rp, WithModeOverride(config.ModeCheap))
	if _, err := withEnv.Resolve("freeform", RouteOptions{}); err != nil {
		t.Fatalf("env mode should cover unknown task: %v", err)
	}
}

func TestResolveRejectsUnknownExplicitMode(t *testing.T) {
	p := mustPolicy(t, testRoutingPolicy())
	if _, err := p.Resolve(TaskTopicMap, RouteOptions{ExplicitMode: "turbo"}); !config.IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestResolveModeWithoutTableEntry(t *testing.T) {
	rp := testRoutingPolicy()
	delete(rp.Modes, config.ModeCheap)
	delete(rp.Tasks, TaskQuizGenerate)
	p := mustPolicy(t, rp)

	if _, err := p.Resolve(TaskOther, RouteOptions{ExplicitMode: config.ModeCheap}); !config.IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestResolveLongContextOverride(t *testing.T) {
	p := mustPolicy(t, testRoutingPolicy())

	d, err := p.Resolve(TaskTopicMap, RouteOptions{TokensIn: config.DefaultLongContextThreshold + 1})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !d.LongContext || d.Primary != config.DefaultLongContextModel {
		t.Fatalf("expected long context model, got %+v", d)
	}
	if d.Fallback != "q-fallback" {
		t.Fatalf("fallback should be unchanged, got %s", d.Fallback)
	}

	d, _ = p.Resolve(TaskTopicMap, RouteOptions{TokensIn: config.DefaultLongContextThreshold})
	if d.LongContext || d.Primary != "q-primary" {
		t.Fatalf("threshold is exclusive, got %+v", d)
	}

	d, _ = p.Resolve(TaskOther, RouteOptions{TokensIn: 1_000_000})
	if d.LongContext {
		t.Fatalf("long context only applies to quality mode")
	}
}

func TestResolveLongContextCustom(t *testing.T) {
	rp := testRoutingPolicy()
	rp.LongContext = config.LongContextConfig{Model: "long-alias", ThresholdTokens: 100}
	rp.Aliases["long-alias"] = "vendor/long-model"
	p := mustPolicy(t, rp)

	d, _ := p.Resolve(TaskTopicMap, RouteOptions{TokensIn: 101})
	if d.Primary != "vendor/long-model" {
		t.Fatalf("expected aliased long context model, got %s", d.Primary)
	}
}

func TestResolveMaxLatency(t *testing.T) {
	p := mustPolicy(t, testRoutingPolicy())

	d, _ := p.Resolve(TaskTopicMap, RouteOptions{})
	if d.MaxLatency != 45*time.Second {
		t.Fatalf("expected per-mode latency, got %s", d.MaxLatency)
	}
	d, _ = p.Resolve(TaskOther, RouteOptions{})
	if d.MaxLatencyMs() != 30000 {
		t.Fatalf("expected default latency, got %d", d.MaxLatencyMs())
	}

	overridden := mustPolicy(t, testRoutingPolicy(), WithLatencyOverride(1500*time.Millisecond))
	d, _ = overridden.Resolve(TaskTopicMap, RouteOptions{})
	if d.MaxLatency != 1500*time.Millisecond {
		t.Fatalf("expected env latency, got %s", d.MaxLatency)
	}

	rp := testRoutingPolicy()
	rp.Defaults.MaxLatencyMs = 0
	d, _ = mustPolicy(t, rp).Resolve(TaskOther, RouteOptions{})
	if d.MaxLatencyMs() != config.DefaultMaxLatencyMs {
		t.Fatalf("expected built-in latency, got %d", d.MaxLatencyMs())
	}
}

func TestNewPolicyRejectsBadOverride(t *testing.T) {
	rp := testRoutingPolicy()
	delete(rp.Modes, config.ModeCheap)
	delete(rp.Tasks, TaskQuizGenerate)
	if _, err := NewPolicy(rp, WithModeOverride(config.ModeCheap)); !config.IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestPolicyRoutes(t *testing.T) {
	rp := testRoutingPolicy()
	rp.Tasks["custom_task"] = config.TaskRoute{Mode: config.ModeQuality}
	p := mustPolicy(t, rp)

	routes := p.Routes()
	if len(routes) != len(KnownTasks)+1 {
		t.Fatalf("expected %d routes, got %d", len(KnownTasks)+1, len(routes))
	}
	last := routes[len(routes)-1]
	if last.TaskID != "custom_task" || last.Primary != "q-primary" {
		t.Fatalf("unexpected custom route %+v", last)
	}
	for _, r := range routes {
		if r.Error != "" {
			t.Fatalf("unexpected route error %+v", r)
		}
	}
}
