package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// GoogleAdapter implements the Adapter interface for Gemini models.
type GoogleAdapter struct {
	client *genai.Client
}

// NewGoogleAdapter creates a new Google Gemini adapter.
func NewGoogleAdapter(apiKey string) (*GoogleAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google: %w", ErrMissingAPIKey)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleAdapter{
		client: client,
	}, nil
}

// Name returns the adapter identifier.
func (a *GoogleAdapter) Name() string {
	return "google"
}

// Complete sends the history to Gemini. Assistant turns map to the "model"
// role and system turns to the system instruction.
func (a *GoogleAdapter) Complete(ctx context.Context, model string, messages []Message, opts Options) (*Completion, error) {
	cfg := &genai.GenerateContentConfig{}
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			cfg.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*opts.Temperature))
	}

	callCtx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := a.client.Models.GenerateContent(callCtx, model, contents, cfg)
	if err != nil {
		return nil, callError(callCtx, a.Name(), model, opts.Timeout, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &AdapterError{Status: http.StatusOK, Err: fmt.Errorf("google %s: returned no candidates", model)}
	}

	completion := &Completion{
		Text:    resp.Text(),
		Status:  http.StatusOK,
		Latency: time.Since(start),
		Adapter: a.Name(),
		Model:   model,
	}
	if raw, err := json.Marshal(resp); err == nil {
		completion.Raw = raw
	}
	if resp.UsageMetadata != nil {
		completion.Usage = normalizeUsage(int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
	}
	return completion, nil
}
