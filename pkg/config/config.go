package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by Load.
const (
	EnvAPIKey            = "MODELGATE_API_KEY"
	EnvBaseURL           = "MODELGATE_BASE_URL"
	EnvTimeoutMs         = "MODELGATE_TIMEOUT_MS"
	EnvMode              = "MODELGATE_MODE"
	EnvShadowProbability = "MODELGATE_SHADOW_PROBABILITY"
	EnvPolicyPath        = "MODELGATE_POLICY"
	EnvLogLevel          = "MODELGATE_LOG_LEVEL"
	EnvCacheTTL          = "MODELGATE_CACHE_TTL"
	EnvCacheMaxEntries   = "MODELGATE_CACHE_MAX_ENTRIES"
	EnvRedisURL          = "MODELGATE_REDIS_URL"
	EnvTelemetryCapacity = "MODELGATE_TELEMETRY_CAPACITY"
	EnvHTTPAddr          = "MODELGATE_HTTP_ADDR"
)

// Config holds the process-wide configuration.
type Config struct {
	APIKey            string        `validate:"required"`
	BaseURL           string        `validate:"required,url"`
	TimeoutOverride   time.Duration `validate:"gte=0"`
	ModeOverride      Mode          `validate:"omitempty,oneof=quality balanced cheap"`
	ShadowProbability float64       `validate:"gte=0,lte=1"`
	PolicyPath        string
	LogLevel          string        `validate:"oneof=debug info warn error"`
	CacheTTL          time.Duration `validate:"gt=0"`
	CacheMaxEntries   int           `validate:"gte=0"`
	RedisURL          string        `validate:"omitempty,url"`
	TelemetryCapacity int           `validate:"gt=0"`
	HTTPAddr          string

	OpenAIAPIKey    string
	AnthropicAPIKey string
	GoogleAPIKey    string
}

// Load reads configuration from environment variables. A missing API key is
// a ConfigError.
func Load() (*Config, error) {
	cfg := &Config{
		APIKey:          strings.TrimSpace(os.Getenv(EnvAPIKey)),
		BaseURL:         getEnvOrDefault(EnvBaseURL, "https://openrouter.ai/api/v1"),
		ModeOverride:    Mode(strings.ToLower(os.Getenv(EnvMode))),
		PolicyPath:      os.Getenv(EnvPolicyPath),
		LogLevel:        strings.ToLower(getEnvOrDefault(EnvLogLevel, "info")),
		RedisURL:        os.Getenv(EnvRedisURL),
		HTTPAddr:        getEnvOrDefault(EnvHTTPAddr, ":8080"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
	}

	if cfg.APIKey == "" {
		return nil, &ConfigError{Field: EnvAPIKey, Err: errors.New("upstream API key is required")}
	}

	var err error
	if cfg.TimeoutOverride, err = envMillis(EnvTimeoutMs); err != nil {
		return nil, err
	}
	if cfg.ShadowProbability, err = envFloat(EnvShadowProbability, 0); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = envDuration(EnvCacheTTL, time.Hour); err != nil {
		return nil, err
	}
	if cfg.CacheMaxEntries, err = envInt(EnvCacheMaxEntries, 0); err != nil {
		return nil, err
	}
	if cfg.TelemetryCapacity, err = envInt(EnvTelemetryCapacity, 200); err != nil {
		return nil, err
	}

	if err := validateStruct("env.", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasAdapter returns true if the API key for the given native adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "openai":
		return c.OpenAIAPIKey != ""
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	default:
		return false
	}
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func envMillis(envVar string) (time.Duration, error) {
	ms, err := envInt(envVar, 0)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func envInt(envVar string, def int) (int, error) {
	v := os.Getenv(envVar)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, &ConfigError{Field: envVar, Err: fmt.Errorf("not an integer: %q", v)}
	}
	return n, nil
}

func envFloat(envVar string, def float64) (float64, error) {
	v := os.Getenv(envVar)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, &ConfigError{Field: envVar, Err: fmt.Errorf("not a number: %q", v)}
	}
	return f, nil
}

func envDuration(envVar string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(envVar)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, &ConfigError{Field: envVar, Err: fmt.Errorf("not a duration: %q", v)}
	}
	return d, nil
}
