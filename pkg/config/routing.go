package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode is a named policy tier mapping to a primary/fallback model pair.
type Mode string

const (
	ModeQuality  Mode = "quality"
	ModeBalanced Mode = "balanced"
	ModeCheap    Mode = "cheap"
)

// Modes lists every known mode.
var Modes = []Mode{ModeQuality, ModeBalanced, ModeCheap}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// Defaults for optional policy sections.
const (
	DefaultMaxLatencyMs         = 30000
	DefaultLongContextModel     = "google/gemini-1.5-pro"
	DefaultLongContextThreshold = 60000
)

// RoutingPolicy is the declarative routing configuration. It is loaded once
// at startup and read-only afterwards.
type RoutingPolicy struct {
	Version     string               `yaml:"version" json:"version"`
	Defaults    PolicyDefaults       `yaml:"defaults" json:"defaults"`
	Modes       map[Mode]ModeRoute   `yaml:"modes" json:"modes" validate:"required,min=1,dive"`
	Tasks       map[string]TaskRoute `yaml:"tasks" json:"tasks" validate:"dive"`
	LongContext LongContextConfig    `yaml:"long_context,omitempty" json:"long_context,omitempty"`
	Aliases     ModelAliases         `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Pricing     PricingConfig        `yaml:"pricing,omitempty" json:"pricing,omitempty" validate:"dive"`
}

// PolicyDefaults holds the global fallbacks. Mode may be empty, in which
// case a task with no configured mode cannot be routed.
type PolicyDefaults struct {
	Mode         Mode `yaml:"mode" json:"mode" validate:"omitempty,oneof=quality balanced cheap"`
	MaxLatencyMs int  `yaml:"max_latency_ms" json:"max_latency_ms" validate:"gte=0"`
}

// ModeRoute maps a mode to its model pair.
type ModeRoute struct {
	Primary      string `yaml:"primary" json:"primary" validate:"required"`
	Fallback     string `yaml:"fallback" json:"fallback" validate:"required"`
	MaxLatencyMs int    `yaml:"max_latency_ms,omitempty" json:"max_latency_ms,omitempty" validate:"gte=0"`
}

// TaskRoute pins a task to a mode.
type TaskRoute struct {
	Mode Mode `yaml:"mode" json:"mode" validate:"required,oneof=quality balanced cheap"`
}

// LongContextConfig controls the quality-tier long-input override.
type LongContextConfig struct {
	Model           string `yaml:"model,omitempty" json:"model,omitempty"`
	ThresholdTokens int    `yaml:"threshold_tokens,omitempty" json:"threshold_tokens,omitempty" validate:"gte=0"`
}

// PricingConfig maps model -> pricing.
type PricingConfig map[string]ModelPricing

// ModelPricing defines per-million token pricing in USD.
type ModelPricing struct {
	InputPerMillion  float64 `yaml:"input_per_million" json:"input_per_million" validate:"gte=0"`
	OutputPerMillion float64 `yaml:"output_per_million" json:"output_per_million" validate:"gte=0"`
}

// LoadRoutingPolicy reads a routing policy from a JSON or YAML file. Any
// read, parse or validation failure is a ConfigError.
func LoadRoutingPolicy(path string) (*RoutingPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "policy", Err: fmt.Errorf("read %s: %w", path, err)}
	}
	return ParseRoutingPolicy(data, filepath.Ext(path))
}

// ParseRoutingPolicy decodes policy bytes. JSON is used for ".json" files or
// content starting with '{'; everything else is parsed as YAML.
func ParseRoutingPolicy(data []byte, ext string) (*RoutingPolicy, error) {
	var policy RoutingPolicy
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &ConfigError{Field: "policy", Err: errors.New("empty policy")}
	}

	if strings.EqualFold(ext, ".json") || trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&policy); err != nil {
			return nil, &ConfigError{Field: "policy", Err: fmt.Errorf("parse json: %w", err)}
		}
	} else if err := yaml.Unmarshal(trimmed, &policy); err != nil {
		return nil, &ConfigError{Field: "policy", Err: fmt.Errorf("parse yaml: %w", err)}
	}

	applyPolicyDefaults(&policy)
	if err := ValidateRoutingPolicy(&policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

// ValidateRoutingPolicy checks struct constraints plus cross references:
// every mode key must be known and aliases must resolve to non-empty ids.
func ValidateRoutingPolicy(p *RoutingPolicy) error {
	if p == nil {
		return &ConfigError{Field: "policy", Err: errors.New("policy is nil")}
	}
	if err := validateStruct("policy.", p); err != nil {
		return err
	}
	for mode := range p.Modes {
		if !mode.Valid() {
			return &ConfigError{Field: "policy.modes", Err: fmt.Errorf("unknown mode %q", mode)}
		}
	}
	for task, route := range p.Tasks {
		if _, ok := p.Modes[route.Mode]; !ok {
			return &ConfigError{Field: "policy.tasks." + task, Err: fmt.Errorf("mode %q has no model table entry", route.Mode)}
		}
	}
	if p.Defaults.Mode != "" {
		if _, ok := p.Modes[p.Defaults.Mode]; !ok {
			return &ConfigError{Field: "policy.defaults.mode", Err: fmt.Errorf("mode %q has no model table entry", p.Defaults.Mode)}
		}
	}
	if errs := p.Aliases.Validate(); len(errs) > 0 {
		return &ConfigError{Field: "policy.aliases", Err: errors.Join(errs...)}
	}
	return nil
}

// DefaultRoutingPolicy returns the built-in policy used when no file is given.
func DefaultRoutingPolicy() *RoutingPolicy {
	p := &RoutingPolicy{
		Version: "builtin-1",
		Defaults: PolicyDefaults{
			Mode:         ModeBalanced,
			MaxLatencyMs: DefaultMaxLatencyMs,
		},
		Modes: map[Mode]ModeRoute{
			ModeQuality: {
				Primary:      "openai/gpt-4o",
				Fallback:     "anthropic/claude-3.5-sonnet",
				MaxLatencyMs: 45000,
			},
			ModeBalanced: {
				Primary:  "openai/gpt-4o-mini",
				Fallback: "google/gemini-flash-1.5",
			},
			ModeCheap: {
				Primary:      "meta-llama/llama-3.1-8b-instruct",
				Fallback:     "openai/gpt-4o-mini",
				MaxLatencyMs: 20000,
			},
		},
		Tasks: map[string]TaskRoute{
			"topic_map":          {Mode: ModeQuality},
			"chunk_assign":       {Mode: ModeBalanced},
			"quiz_generate":      {Mode: ModeBalanced},
			"overview_summarize": {Mode: ModeCheap},
			"diagram_mermaid":    {Mode: ModeQuality},
		},
	}
	applyPolicyDefaults(p)
	return p
}

func applyPolicyDefaults(p *RoutingPolicy) {
	if p == nil {
		return
	}
	if p.Defaults.MaxLatencyMs == 0 {
		p.Defaults.MaxLatencyMs = DefaultMaxLatencyMs
	}
	if p.LongContext.Model == "" {
		p.LongContext.Model = DefaultLongContextModel
	}
	if p.LongContext.ThresholdTokens == 0 {
		p.LongContext.ThresholdTokens = DefaultLongContextThreshold
	}
	if p.Tasks == nil {
		p.Tasks = make(map[string]TaskRoute)
	}
}
