package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"time"
)

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Complete sends one chat-completion exchange to the model.
	// Implementations must honor opts.Timeout by cancelling the request.
	Complete(ctx context.Context, model string, messages []Message, opts Options) (*Completion, error)

	// Name returns the adapter's identifier.
	Name() string
}

// DefaultTimeout applies when a call carries no timeout of its own.
const DefaultTimeout = 30 * time.Second

// withTimeout derives the per-call context. The returned cancel func must
// always be called so the underlying connection is released.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// callError maps a transport failure to the adapter error taxonomy.
// A deadline on the call context always becomes ErrTimeout.
func callError(callCtx context.Context, adapterName, model string, timeout time.Duration, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		return fmt.Errorf("%s %s: %w after %s", adapterName, model, ErrTimeout, timeout)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", adapterName, model, err)
	}
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return err
	}
	return &AdapterError{
		Temporary: droppedConnection(err),
		Err:       fmt.Errorf("%s %s: %w", adapterName, model, err),
	}
}

// droppedConnection reports a connection that failed mid-exchange.
func droppedConnection(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
