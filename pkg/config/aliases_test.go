package config

import "testing"

func TestResolve(t *testing.T) {
	aliases := ModelAliases{
		"fast":    "openai/gpt-4o-mini",
		"quality": "anthropic:claude-sonnet-4-20250514",
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "resolve known alias",
			input:    "fast",
			expected: "openai/gpt-4o-mini",
		},
		{
			name:     "resolve native alias",
			input:    "quality",
			expected: "anthropic:claude-sonnet-4-20250514",
		},
		{
			name:     "passthrough canonical name",
			input:    "meta-llama/llama-3.1-8b-instruct",
			expected: "meta-llama/llama-3.1-8b-instruct",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := aliases.Resolve(tt.input); got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolveNilAliases(t *testing.T) {
	var aliases ModelAliases
	if got := aliases.Resolve("anything"); got != "anything" {
		t.Errorf("nil aliases should pass through, got %q", got)
	}
	if aliases.IsAlias("anything") {
		t.Errorf("nil aliases should have no entries")
	}
}

func TestAliasesValidate(t *testing.T) {
	aliases := ModelAliases{
		"fast":  "openai/gpt-4o-mini",
		"quick": "fast",
		"empty": "",
	}
	errs := aliases.Validate()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
}
