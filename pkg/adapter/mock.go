package adapter

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// MockReply is one scripted outcome of a MockAdapter call.
type MockReply struct {
	Text  string
	Err   error
	Delay time.Duration
	Usage *Usage
	Panic bool
}

// MockCall records one call made to a MockAdapter.
type MockCall struct {
	Model    string
	Messages []Message
}

// MockAdapter returns deterministic responses for local runs and tests.
// Replies are scripted per model and consumed in order; the last reply for
// a model repeats once the script is exhausted.
type MockAdapter struct {
	mu              sync.Mutex
	scripts         map[string][]MockReply
	defaultResponse string
	calls           []MockCall
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		scripts:         make(map[string][]MockReply),
		defaultResponse: "mock response:",
	}
}

// Script queues replies for model.
func (a *MockAdapter) Script(model string, replies ...MockReply) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scripts[model] = append(a.scripts[model], replies...)
	return a
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Calls returns a copy of every call seen so far.
func (a *MockAdapter) Calls() []MockCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]MockCall, len(a.calls))
	copy(out, a.calls)
	return out
}

// CallsFor counts calls made to model.
func (a *MockAdapter) CallsFor(model string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if c.Model == model {
			n++
		}
	}
	return n
}

// Complete returns the next scripted reply for model.
func (a *MockAdapter) Complete(ctx context.Context, model string, messages []Message, opts Options) (*Completion, error) {
	reply := a.next(model, messages)
	if reply.Panic {
		panic(fmt.Sprintf("mock adapter: scripted panic for %s", model))
	}

	if reply.Delay > 0 {
		callCtx, cancel := withTimeout(ctx, opts.Timeout)
		defer cancel()
		timer := time.NewTimer(reply.Delay)
		defer timer.Stop()
		select {
		case <-callCtx.Done():
			return nil, callError(callCtx, a.Name(), model, opts.Timeout, callCtx.Err())
		case <-timer.C:
		}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &Completion{
		Text:    reply.Text,
		Status:  http.StatusOK,
		Latency: reply.Delay,
		Raw:     []byte(reply.Text),
		Usage:   reply.Usage,
		Adapter: a.Name(),
		Model:   model,
	}, nil
}

func (a *MockAdapter) next(model string, messages []Message) MockReply {
	a.mu.Lock()
	defer a.mu.Unlock()

	history := make([]Message, len(messages))
	copy(history, messages)
	a.calls = append(a.calls, MockCall{Model: model, Messages: history})

	script := a.scripts[model]
	switch len(script) {
	case 0:
		last := ""
		if len(messages) > 0 {
			last = messages[len(messages)-1].Content
		}
		return MockReply{Text: fmt.Sprintf("%s\n%s", a.defaultResponse, last)}
	case 1:
		return script[0]
	default:
		a.scripts[model] = script[1:]
		return script[0]
	}
}
