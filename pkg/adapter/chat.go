package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the OpenAI-compatible gateway used when none is configured.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// ChatClient implements Adapter for any OpenAI-compatible chat-completion
// endpoint using bearer-token auth.
type ChatClient struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ChatOption configures a ChatClient.
type ChatOption func(*ChatClient)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) ChatOption {
	return func(cc *ChatClient) {
		cc.httpClient = c
	}
}

// WithName overrides the adapter name reported in errors and telemetry.
func WithName(name string) ChatOption {
	return func(cc *ChatClient) {
		cc.name = name
	}
}

// chatRequest represents the OpenAI-compatible request format.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the OpenAI-compatible response format.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// NewChatClient creates a client for baseURL. The credential is read once
// here; an empty key is a startup error.
func NewChatClient(apiKey, baseURL string, opts ...ChatOption) (*ChatClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("chat client: %w", ErrMissingAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &ChatClient{
		name:       "chat",
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the adapter identifier.
func (c *ChatClient) Name() string {
	return c.name
}

// Complete issues one POST to /chat/completions.
func (c *ChatClient) Complete(ctx context.Context, model string, messages []Message, opts Options) (*Completion, error) {
	reqBody := chatRequest{
		Model:       model,
		Messages:    make([]chatMessage, 0, len(messages)),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	callCtx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, callError(callCtx, c.name, model, opts.Timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, callError(callCtx, c.name, model, opts.Timeout, err)
	}
	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AdapterError{
			Status: resp.StatusCode,
			Body:   truncate(string(body), 512),
			Err:    fmt.Errorf("%s %s: returned status %d: %s", c.name, model, resp.StatusCode, truncate(string(body), 512)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &AdapterError{Status: resp.StatusCode, Err: fmt.Errorf("%s %s: failed to parse response: %w", c.name, model, err)}
	}
	if parsed.Error != nil {
		return nil, &AdapterError{
			Status: resp.StatusCode,
			Body:   parsed.Error.Message,
			Err:    fmt.Errorf("%s %s: API error: %s (type: %s)", c.name, model, parsed.Error.Message, parsed.Error.Type),
		}
	}
	if len(parsed.Choices) == 0 {
		return nil, &AdapterError{Status: resp.StatusCode, Err: fmt.Errorf("%s %s: returned no choices", c.name, model)}
	}

	completion := &Completion{
		Text:    parsed.Choices[0].Message.Content,
		Status:  resp.StatusCode,
		Latency: latency,
		Raw:     body,
		Adapter: c.name,
		Model:   model,
	}
	if parsed.Usage != nil {
		completion.Usage = normalizeUsage(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	}
	return completion, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
