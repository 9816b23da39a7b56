package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/zen-systems/modelgate/pkg/adapter"
	"github.com/zen-systems/modelgate/pkg/cache"
	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/logging"
	"github.com/zen-systems/modelgate/pkg/router"
	"github.com/zen-systems/modelgate/pkg/telemetry"
)

// app holds the wired process components.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	router   *router.Router
	shadow   *router.ShadowPool
	redis    *cache.Redis
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, devLogs)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	rp, err := loadRoutingPolicy()
	if err != nil {
		return nil, fmt.Errorf("failed to load routing policy: %w", err)
	}
	policy, err := router.NewPolicy(rp,
		router.WithModeOverride(cfg.ModeOverride),
		router.WithLatencyOverride(cfg.TimeoutOverride))
	if err != nil {
		return nil, err
	}

	provider, err := createProvider(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapters: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	a := &app{cfg: cfg, logger: logger, registry: reg}

	var store cache.Store
	local := cache.NewMemory(cache.WithMaxEntries(cfg.CacheMaxEntries))
	store = local
	if cfg.RedisURL != "" {
		remote, err := cache.NewRedis(cfg.RedisURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect cache: %w", err)
		}
		a.redis = remote
		store = cache.NewTiered(local, remote)
	}

	opts := []router.Option{
		router.WithLogger(logger),
		router.WithCache(store, cfg.CacheTTL),
		router.WithTelemetry(telemetry.NewLog(cfg.TelemetryCapacity, telemetry.WithMetrics(metrics))),
		router.WithPrices(telemetry.NewPriceTable(rp.Pricing)),
		router.WithMetrics(metrics),
	}
	if cfg.ShadowProbability > 0 {
		a.shadow = router.NewShadowPool(router.DefaultShadowWorkers,
			router.WithShadowLogger(logger))
		opts = append(opts, router.WithShadow(a.shadow, cfg.ShadowProbability))
	}

	a.router = router.New(provider, policy, opts...)
	return a, nil
}

// createProvider builds the upstream adapter: the OpenAI-compatible chat
// client as default plus any native SDK adapters with configured keys.
func createProvider(cfg *config.Config, logger *zap.Logger) (adapter.Adapter, error) {
	chat, err := adapter.NewChatClient(cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	registry := adapter.NewRegistry(chat)

	if cfg.HasAdapter("openai") {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		registry.Register(a)
	}
	if cfg.HasAdapter("anthropic") {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		registry.Register(a)
	}
	if cfg.HasAdapter("google") {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		registry.Register(a)
	}

	logger.Debug("adapters configured", zap.Strings("adapters", registry.Adapters()))
	return registry, nil
}

// Close stops background work and flushes logs.
func (a *app) Close() {
	if a.shadow != nil {
		a.shadow.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.logger.Sync()
}
