package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAdapter implements the Adapter interface for OpenAI models.
type OpenAIAdapter struct {
	client openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter. SDK retries are disabled;
// fallback between models is the router's job.
func NewOpenAIAdapter(apiKey string, opts ...option.RequestOption) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := openai.NewClient(reqOpts...)
	return &OpenAIAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Complete sends the history to OpenAI's chat completions API.
func (a *OpenAIAdapter) Complete(ctx context.Context, model string, messages []Message, opts Options) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}

	callCtx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	var httpResp *http.Response
	start := time.Now()
	resp, err := a.client.Chat.Completions.New(callCtx, params, option.WithResponseInto(&httpResp))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &AdapterError{
				Status: apiErr.StatusCode,
				Err:    fmt.Errorf("openai %s: API error: %w", model, err),
			}
		}
		return nil, callError(callCtx, a.Name(), model, opts.Timeout, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &AdapterError{Status: http.StatusOK, Err: fmt.Errorf("openai %s: returned no choices", model)}
	}

	status := http.StatusOK
	if httpResp != nil {
		status = httpResp.StatusCode
	}
	return &Completion{
		Text:    resp.Choices[0].Message.Content,
		Status:  status,
		Latency: time.Since(start),
		Raw:     []byte(resp.RawJSON()),
		Usage:   normalizeUsage(int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens)),
		Adapter: a.Name(),
		Model:   model,
	}, nil
}
