package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/modelgate/pkg/adapter"
	"github.com/zen-systems/modelgate/pkg/repair"
	"github.com/zen-systems/modelgate/pkg/telemetry"
	"github.com/zen-systems/modelgate/pkg/validate"
)

// attemptOutcome is the result of one model's call, validation and optional
// repair.
type attemptOutcome struct {
	ok         bool
	model      string
	fallback   bool
	text       string
	structured json.RawMessage
	raw        string
	repaired   bool
	validFirst *bool
	tokensIn   int
	tokensOut  int
	cost       float64
	latency    time.Duration
	err        error
}

func (o attemptOutcome) result(call *preparedCall, model string, fallback bool) *Result {
	res := &Result{
		TaskID:       call.taskID,
		Text:         o.text,
		Structured:   o.structured,
		ModelUsed:    model,
		Repaired:     o.repaired,
		Fallback:     fallback,
		TokensIn:     o.tokensIn,
		TokensOut:    o.tokensOut,
		CostEstimate: o.cost,
	}
	if call.expectsJSON() {
		valid := true
		res.ValidJSON = &valid
	}
	return res
}

// attempt calls model once, validates, and on a structural failure asks the
// same model for exactly one repair. One telemetry entry is recorded.
func (r *Router) attempt(ctx context.Context, logger *zap.Logger, call *preparedCall, model string, timeout time.Duration, fallback, shadow bool) attemptOutcome {
	out := attemptOutcome{model: model, fallback: fallback}
	start := r.now()
	opts := adapter.Options{
		MaxTokens:   call.maxTokens,
		Temperature: call.temperature,
		Timeout:     timeout,
	}

	defer func() {
		out.latency = r.now().Sub(start)
		r.record(call, out, shadow)
	}()

	comp, err := r.provider.Complete(ctx, model, call.messages, opts)
	if err != nil {
		out.err = err
		logger.Warn("provider call failed",
			zap.String("task", call.taskID),
			zap.String("model", model),
			zap.Bool("shadow", shadow),
			zap.String("class", string(adapter.Classify(err))),
			zap.Bool("transient", adapter.IsTransient(err)),
			zap.Int("status", adapter.StatusCode(err)),
			zap.Error(err))
		return out
	}
	out.raw = comp.Text
	out.addUsage(r.prices, model, call.tokensIn, comp)

	outcome := validate.Validate(comp.Text, call.shape, call.schema)
	if call.expectsJSON() {
		first := outcome.OK
		out.validFirst = &first
	}
	if outcome.OK {
		out.accept(call.shape, comp.Text, outcome)
		return out
	}
	if !call.shape.Structured() {
		out.err = fmt.Errorf("validation failed: %s", outcome.Error)
		return out
	}

	logger.Info("output failed validation; requesting repair",
		zap.String("task", call.taskID),
		zap.String("model", model),
		zap.String("schema", call.schema),
		zap.String("reason", outcome.Error))

	invalid := comp.Text
	if call.shape == validate.ShapeMermaid {
		if code, found := validate.ExtractDiagram(comp.Text); found {
			invalid = code
		}
	}
	messages := repair.Messages(call.messages, call.shape, call.schema, invalid, outcome.Error)
	fixed, err := r.provider.Complete(ctx, model, messages, opts)
	if err != nil {
		out.err = fmt.Errorf("validation failed: %s; repair call: %w", outcome.Error, err)
		logger.Warn("repair call failed",
			zap.String("task", call.taskID),
			zap.String("model", model),
			zap.Error(err))
		return out
	}
	out.addUsage(r.prices, model, telemetry.EstimateTokens(adapter.JoinMessages(messages)), fixed)

	repaired := validate.Validate(fixed.Text, call.shape, call.schema)
	if !repaired.OK {
		out.err = fmt.Errorf("validation failed after repair: %s", repaired.Error)
		return out
	}
	out.repaired = true
	out.accept(call.shape, fixed.Text, repaired)
	return out
}

func (o *attemptOutcome) accept(shape validate.Shape, text string, outcome validate.Outcome) {
	o.ok = true
	o.text = text
	switch shape {
	case validate.ShapeMermaid:
		if code, ok := outcome.Data.(string); ok {
			o.text = code
		}
	case validate.ShapeJSON:
		if b, err := json.Marshal(outcome.Data); err == nil {
			o.structured = b
		}
	}
}

func (o *attemptOutcome) addUsage(prices *telemetry.PriceTable, model string, estimatedIn int, comp *adapter.Completion) {
	in, out := estimatedIn, telemetry.EstimateTokens(comp.Text)
	if comp.Usage != nil {
		if comp.Usage.PromptTokens > 0 {
			in = comp.Usage.PromptTokens
		}
		if comp.Usage.CompletionTokens > 0 {
			out = comp.Usage.CompletionTokens
		}
	}
	o.tokensIn += in
	o.tokensOut += out
	o.cost += prices.Estimate(model, in, out)
}

func (r *Router) record(call *preparedCall, out attemptOutcome, shadow bool) {
	entry := telemetry.Entry{
		TaskID:       call.taskID,
		ModelID:      out.model,
		LatencyMs:    out.latency.Milliseconds(),
		TokensIn:     out.tokensIn,
		TokensOut:    out.tokensOut,
		CostEstimate: out.cost,
		ValidJSON:    out.validFirst,
		Repaired:     out.repaired,
		OK:           out.ok,
		Fallback:     out.fallback,
		Shadow:       shadow,
	}
	if out.err != nil {
		entry.Error = out.err.Error()
	}
	r.log.Record(entry)
}
