// Package router selects a model for each request, validates and repairs the
// output, falls back to a second model and degrades instead of failing.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/modelgate/pkg/adapter"
	"github.com/zen-systems/modelgate/pkg/cache"
	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/telemetry"
	"github.com/zen-systems/modelgate/pkg/validate"
)

// DegradedModel is the ModelUsed of a result produced when every model
// failed.
const DegradedModel = "degraded"

// ErrInvalidRequest marks a request the router cannot route at all.
var ErrInvalidRequest = errors.New("invalid request")

// Request is one routing call. Either Prompt or Messages is required. An
// empty TaskID is classified from the prompt; an empty Shape is derived
// from SchemaName and RequireJSON.
type Request struct {
	TaskID           string            `json:"task_id,omitempty"`
	Prompt           string            `json:"prompt,omitempty"`
	Messages         []adapter.Message `json:"messages,omitempty"`
	Shape            validate.Shape    `json:"shape,omitempty"`
	SchemaName       string            `json:"schema,omitempty"`
	RequireJSON      bool              `json:"require_json,omitempty"`
	Mode             config.Mode       `json:"mode,omitempty"`
	TokensInEstimate int               `json:"tokens_in_estimate,omitempty"`
	MaxTokens        int               `json:"max_tokens,omitempty"`
	Temperature      *float64          `json:"temperature,omitempty"`
}

// Result is what the caller gets back. A degraded result has ModelUsed ==
// DegradedModel, no Structured value and zero cost.
type Result struct {
	TaskID       string          `json:"task_id"`
	Text         string          `json:"text,omitempty"`
	Structured   json.RawMessage `json:"structured,omitempty"`
	ModelUsed    string          `json:"model_used"`
	LatencyMs    int64           `json:"latency_ms"`
	Repaired     bool            `json:"repaired"`
	Fallback     bool            `json:"fallback,omitempty"`
	ValidJSON    *bool           `json:"valid_json,omitempty"`
	TokensIn     int             `json:"tokens_in,omitempty"`
	TokensOut    int             `json:"tokens_out,omitempty"`
	CostEstimate float64         `json:"cost_estimate"`
}

// Degraded reports whether the result is the all-models-failed placeholder.
func (r *Result) Degraded() bool {
	return r.ModelUsed == DegradedModel
}

// Router orchestrates cache, policy, provider calls, validation, repair,
// fallback, shadow calls and telemetry. It is safe for concurrent use.
type Router struct {
	provider adapter.Adapter
	policy   *Policy
	cache    cache.Store
	cacheTTL time.Duration
	log      *telemetry.Log
	prices   *telemetry.PriceTable
	metrics  *telemetry.Metrics
	shadow   *ShadowPool
	shadowP  float64
	random   func() float64
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithCache enables result caching.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(r *Router) {
		r.cache = store
		r.cacheTTL = ttl
	}
}

// WithTelemetry sets the call log.
func WithTelemetry(log *telemetry.Log) Option {
	return func(r *Router) {
		r.log = log
	}
}

// WithPrices sets the price table used for cost estimates.
func WithPrices(prices *telemetry.PriceTable) Option {
	return func(r *Router) {
		r.prices = prices
	}
}

// WithMetrics records cache lookups in Prometheus.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithShadow sends the fallback model a copy of a request with probability
// p, on pool.
func WithShadow(pool *ShadowPool, p float64) Option {
	return func(r *Router) {
		r.shadow = pool
		r.shadowP = p
	}
}

// WithRandom overrides the source used for the shadow coin flip.
func WithRandom(random func() float64) Option {
	return func(r *Router) {
		r.random = random
	}
}

// WithLogger sets the router logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source used for latency.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// New creates a router over provider and policy.
func New(provider adapter.Adapter, policy *Policy, opts ...Option) *Router {
	r := &Router{
		provider: provider,
		policy:   policy,
		cacheTTL: cache.DefaultTTL,
		random:   rand.Float64,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = telemetry.NewLog(telemetry.DefaultCapacity, telemetry.WithMetrics(r.metrics))
	}
	if r.prices == nil {
		r.prices = telemetry.NewPriceTable(nil)
	}
	return r
}

// Policy returns the routing policy.
func (r *Router) Policy() *Policy {
	return r.policy
}

// Telemetry returns the call log.
func (r *Router) Telemetry() *telemetry.Log {
	return r.log
}

// Route serves req. Provider and validation failures never surface as
// errors: the router falls back, then degrades. Only a ConfigError (no
// usable mode) or ErrInvalidRequest is returned.
func (r *Router) Route(ctx context.Context, req Request) (*Result, error) {
	start := r.now()

	call, err := prepare(req)
	if err != nil {
		return nil, err
	}

	key := cache.Key(call.taskID, string(call.shape), call.schema, string(call.mode), call.identity)
	if cached, ok := r.cached(ctx, key); ok {
		return cached, nil
	}

	decision, err := r.policy.Resolve(call.taskID, RouteOptions{
		TokensIn:     call.tokensIn,
		RequireJSON:  call.requireJSON,
		ExplicitMode: call.mode,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("route resolved",
		zap.String("task", call.taskID),
		zap.String("mode", string(decision.Mode)),
		zap.String("primary", decision.Primary),
		zap.String("fallback", decision.Fallback),
		zap.Bool("long_context", decision.LongContext))

	r.maybeShadow(call, decision)

	var (
		lastErr  error
		lastText string
		lastOut  attemptOutcome
	)
	models := []string{decision.Primary, decision.Fallback}
	for i, model := range models {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		fallback := i > 0
		out := r.attempt(ctx, r.logger, call, model, decision.MaxLatency, fallback, false)
		if out.ok {
			result := out.result(call, model, fallback)
			result.LatencyMs = r.now().Sub(start).Milliseconds()
			return r.store(ctx, key, result), nil
		}
		lastErr = out.err
		if strings.TrimSpace(out.raw) != "" {
			lastText, lastOut = out.raw, out
		}
		if i == 0 {
			r.logger.Warn("primary attempt failed; trying fallback",
				zap.String("task", call.taskID),
				zap.String("model", model),
				zap.String("fallback", decision.Fallback),
				zap.Error(out.err))
		}
	}

	if lastText != "" {
		r.logger.Warn("no model produced valid output; returning last raw text",
			zap.String("task", call.taskID),
			zap.String("model", lastOut.model),
			zap.Error(lastErr))
		result := &Result{
			TaskID:       call.taskID,
			Text:         lastText,
			ModelUsed:    lastOut.model,
			LatencyMs:    r.now().Sub(start).Milliseconds(),
			Fallback:     lastOut.fallback,
			TokensIn:     lastOut.tokensIn,
			TokensOut:    lastOut.tokensOut,
			CostEstimate: lastOut.cost,
		}
		if call.expectsJSON() {
			invalid := false
			result.ValidJSON = &invalid
		}
		return result, nil
	}

	return r.degrade(call, lastErr, start), nil
}

func (r *Router) cached(ctx context.Context, key string) (*Result, bool) {
	if r.cache == nil {
		return nil, false
	}
	data, ok := r.cache.Get(ctx, key)
	r.metrics.CacheLookup(ok)
	if !ok {
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		r.logger.Warn("discarding undecodable cache entry", zap.Error(err))
		return nil, false
	}
	return &result, true
}

// store caches result and returns the value decoded from the stored bytes,
// so the first caller sees exactly what later cache hits will see.
func (r *Router) store(ctx context.Context, key string, result *Result) *Result {
	if r.cache == nil {
		return result
	}
	data, err := json.Marshal(result)
	if err != nil {
		r.logger.Warn("result not cacheable", zap.Error(err))
		return result
	}
	r.cache.Set(ctx, key, data, r.cacheTTL)

	var stored Result
	if err := json.Unmarshal(data, &stored); err != nil {
		return result
	}
	return &stored
}

func (r *Router) maybeShadow(call *preparedCall, decision *Decision) {
	if r.shadow == nil || r.shadowP <= 0 || decision.Fallback == "" {
		return
	}
	if r.random() >= r.shadowP {
		return
	}
	logger := r.shadow.Logger()
	model, latency := decision.Fallback, decision.MaxLatency
	accepted := r.shadow.Submit(func(ctx context.Context) {
		out := r.attempt(ctx, logger, call, model, latency, false, true)
		if !out.ok {
			logger.Info("shadow call failed",
				zap.String("task", call.taskID),
				zap.String("model", model),
				zap.Error(out.err))
		}
	})
	if !accepted {
		r.logger.Debug("shadow call not dispatched", zap.String("task", call.taskID))
	}
}

func (r *Router) degrade(call *preparedCall, lastErr error, start time.Time) *Result {
	reason := "no model attempted"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	r.logger.Error("all models failed; degrading",
		zap.String("task", call.taskID),
		zap.String("error", reason))

	latency := r.now().Sub(start).Milliseconds()
	r.log.Record(telemetry.Entry{
		TaskID:    call.taskID,
		ModelID:   DegradedModel,
		LatencyMs: latency,
		Error:     reason,
	})
	return &Result{
		TaskID:    call.taskID,
		Text:      fmt.Sprintf("[degraded] %s is temporarily unavailable: %s", call.taskID, reason),
		ModelUsed: DegradedModel,
		LatencyMs: latency,
		Fallback:  true,
	}
}

// preparedCall is a normalized Request.
type preparedCall struct {
	taskID      string
	identity    string
	messages    []adapter.Message
	shape       validate.Shape
	schema      string
	requireJSON bool
	mode        config.Mode
	tokensIn    int
	maxTokens   int
	temperature *float64
}

func prepare(req Request) (*preparedCall, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" && len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: prompt or messages required", ErrInvalidRequest)
	}
	if req.SchemaName != "" && !validate.KnownSchema(req.SchemaName) {
		return nil, fmt.Errorf("%w: unknown schema %q", ErrInvalidRequest, req.SchemaName)
	}
	if req.Shape != "" && !req.Shape.Valid() {
		return nil, fmt.Errorf("%w: unknown shape %q", ErrInvalidRequest, req.Shape)
	}

	call := &preparedCall{
		taskID:      req.TaskID,
		shape:       req.Shape,
		schema:      req.SchemaName,
		requireJSON: req.RequireJSON,
		mode:        config.Mode(strings.ToLower(string(req.Mode))),
		tokensIn:    req.TokensInEstimate,
		maxTokens:   req.MaxTokens,
		temperature: req.Temperature,
	}

	if len(req.Messages) > 0 {
		call.messages = append([]adapter.Message(nil), req.Messages...)
		call.identity = adapter.JoinMessages(req.Messages)
	} else {
		call.messages = []adapter.Message{adapter.UserMessage(req.Prompt)}
		call.identity = req.Prompt
	}

	if call.taskID == "" {
		call.taskID = Classify(lastUserContent(call.messages))
	}
	if call.shape == "" {
		switch {
		case call.schema == validate.SchemaMermaid:
			call.shape = validate.ShapeMermaid
		case call.schema != "" || call.requireJSON:
			call.shape = validate.ShapeJSON
		default:
			call.shape = validate.ShapeText
		}
	}
	if !validate.Compatible(call.shape, call.schema) {
		return nil, fmt.Errorf("%w: schema %q cannot be checked as %s", ErrInvalidRequest, call.schema, call.shape)
	}
	if call.requireJSON && call.shape != validate.ShapeJSON {
		return nil, fmt.Errorf("%w: require_json conflicts with shape %s", ErrInvalidRequest, call.shape)
	}
	if call.tokensIn <= 0 {
		call.tokensIn = telemetry.EstimateTokens(call.identity)
	}
	return call, nil
}

func (c *preparedCall) expectsJSON() bool {
	return c.shape == validate.ShapeJSON
}

func lastUserContent(messages []adapter.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == adapter.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
