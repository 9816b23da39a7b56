package adapter

import (
	"strings"
	"time"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage is shorthand for a single user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Options tunes a single completion call.
type Options struct {
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
}

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the outcome of one successful provider exchange.
type Completion struct {
	Text    string
	Status  int
	Latency time.Duration
	Raw     []byte
	Usage   *Usage
	Adapter string
	Model   string
}

// JoinMessages flattens a history into one string. It is used for cache
// keys and token estimates, never sent upstream.
func JoinMessages(messages []Message) string {
	var sb strings.Builder
	for i, m := range messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	return sb.String()
}

func normalizeUsage(prompt, completion int) *Usage {
	if prompt == 0 && completion == 0 {
		return nil
	}
	return &Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}
