package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"
)

type netTimeout struct{ timeout bool }

func (e netTimeout) Error() string   { return "net failure" }
func (e netTimeout) Timeout() bool   { return e.timeout }
func (e netTimeout) Temporary() bool { return false }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		class     ErrorClass
		transient bool
	}{
		{name: "nil", err: nil, class: ClassNone},
		{name: "timeout", err: fmt.Errorf("chat m: %w", ErrTimeout), class: ClassTimeout, transient: true},
		{name: "deadline", err: context.DeadlineExceeded, class: ClassTimeout, transient: true},
		{name: "canceled", err: fmt.Errorf("chat m: %w", context.Canceled), class: ClassCanceled},
		{name: "429", err: &AdapterError{Status: 429}, class: ClassRateLimited, transient: true},
		{name: "503", err: &AdapterError{Status: 503, Body: "overloaded"}, class: ClassServer, transient: true},
		{name: "400", err: &AdapterError{Status: 400}, class: ClassClient},
		{name: "network", err: &AdapterError{Err: netTimeout{}}, class: ClassNetwork, transient: true},
		{name: "network timeout", err: &AdapterError{Err: netTimeout{timeout: true}}, class: ClassTimeout, transient: true},
		{name: "marked temporary", err: &AdapterError{Err: errors.New("empty body"), Temporary: true}, class: ClassOther, transient: true},
		{name: "other", err: errors.New("boom"), class: ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.class {
				t.Fatalf("Classify = %q, want %q", got, tt.class)
			}
			if got := IsTransient(tt.err); got != tt.transient {
				t.Fatalf("IsTransient = %v, want %v", got, tt.transient)
			}
		})
	}
}

func TestAdapterErrorMessage(t *testing.T) {
	err := &AdapterError{Status: 502, Body: "bad gateway"}
	if err.Error() != "provider returned status 502: bad gateway" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	wrapped := &AdapterError{Status: 500, Err: errors.New("decode failed")}
	if wrapped.Error() != "decode failed" {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
	if IsTimeout(wrapped) {
		t.Fatalf("status error must not be a timeout")
	}
}

func TestCallErrorMarksDroppedConnectionTemporary(t *testing.T) {
	ctx := context.Background()

	dropped := callError(ctx, "chat", "m-1", time.Second, fmt.Errorf("read body: %w", io.ErrUnexpectedEOF))
	var adapterErr *AdapterError
	if !errors.As(dropped, &adapterErr) || !adapterErr.Temporary {
		t.Fatalf("expected temporary adapter error, got %#v", dropped)
	}
	if !IsTransient(dropped) {
		t.Fatalf("dropped connection should be transient")
	}

	reset := callError(ctx, "chat", "m-1", time.Second, fmt.Errorf("write: %w", syscall.ECONNRESET))
	if !IsTransient(reset) {
		t.Fatalf("connection reset should be transient")
	}

	bad := callError(ctx, "chat", "m-1", time.Second, errors.New("unsupported protocol scheme"))
	if IsTransient(bad) {
		t.Fatalf("malformed request should not be transient")
	}
}
