package telemetry

import (
	"strings"

	"github.com/zen-systems/modelgate/pkg/config"
)

// Price is a per-million-token rate in USD.
type Price struct {
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

// DefaultPrice is the conservative row charged for unknown models.
var DefaultPrice = Price{InputPerMillion: 5, OutputPerMillion: 15}

var staticPrices = map[string]Price{
	"openai/gpt-4o":                     {InputPerMillion: 2.5, OutputPerMillion: 10},
	"openai/gpt-4o-mini":                {InputPerMillion: 0.15, OutputPerMillion: 0.6},
	"anthropic/claude-3.5-sonnet":       {InputPerMillion: 3, OutputPerMillion: 15},
	"anthropic/claude-3-haiku":          {InputPerMillion: 0.25, OutputPerMillion: 1.25},
	"google/gemini-1.5-pro":             {InputPerMillion: 1.25, OutputPerMillion: 5},
	"google/gemini-flash-1.5":           {InputPerMillion: 0.075, OutputPerMillion: 0.3},
	"meta-llama/llama-3.1-8b-instruct":  {InputPerMillion: 0.05, OutputPerMillion: 0.08},
	"meta-llama/llama-3.1-70b-instruct": {InputPerMillion: 0.35, OutputPerMillion: 0.4},
}

// PriceTable maps model ids to prices with a default row.
type PriceTable struct {
	rows map[string]Price
	def  Price
}

// NewPriceTable builds the static table with policy overrides applied.
func NewPriceTable(overrides config.PricingConfig) *PriceTable {
	rows := make(map[string]Price, len(staticPrices)+len(overrides))
	for model, p := range staticPrices {
		rows[model] = p
	}
	for model, p := range overrides {
		rows[canonicalModel(model)] = Price{InputPerMillion: p.InputPerMillion, OutputPerMillion: p.OutputPerMillion}
	}
	return &PriceTable{rows: rows, def: DefaultPrice}
}

// Lookup returns the price for model and whether it was found. Native ids
// like "openai:gpt-4o" are looked up as "openai/gpt-4o".
func (t *PriceTable) Lookup(model string) (Price, bool) {
	if t == nil {
		p, ok := staticPrices[canonicalModel(model)]
		if !ok {
			return DefaultPrice, false
		}
		return p, true
	}
	p, ok := t.rows[canonicalModel(model)]
	if !ok {
		return t.def, false
	}
	return p, true
}

// Estimate returns the USD cost of a call.
func (t *PriceTable) Estimate(model string, tokensIn, tokensOut int) float64 {
	p, _ := t.Lookup(model)
	return (float64(tokensIn)*p.InputPerMillion + float64(tokensOut)*p.OutputPerMillion) / 1_000_000
}

// EstimateCost prices a call against the static table.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	var t *PriceTable
	return t.Estimate(model, tokensIn, tokensOut)
}

// EstimateTokens approximates a token count as one token per four bytes,
// rounded up.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func canonicalModel(model string) string {
	model = strings.TrimSpace(model)
	if i := strings.IndexByte(model, ':'); i > 0 && !strings.Contains(model[:i], "/") {
		return model[:i] + "/" + model[i+1:]
	}
	return model
}
