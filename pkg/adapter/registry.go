package adapter

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Registry dispatches model ids to adapters. An id of the form
// "<adapter>:<model>" selects a named adapter; anything else goes to the
// default adapter unchanged.
type Registry struct {
	fallback Adapter
	named    map[string]Adapter
}

// NewRegistry creates a registry around the default adapter.
func NewRegistry(defaultAdapter Adapter, named ...Adapter) *Registry {
	r := &Registry{
		fallback: defaultAdapter,
		named:    make(map[string]Adapter),
	}
	for _, a := range named {
		r.Register(a)
	}
	return r
}

// Register adds a named adapter, replacing any with the same name.
func (r *Registry) Register(a Adapter) {
	if a == nil {
		return
	}
	r.named[a.Name()] = a
}

// Name returns the adapter identifier.
func (r *Registry) Name() string {
	return "registry"
}

// Adapters returns the registered adapter names, sorted.
func (r *Registry) Adapters() []string {
	names := make([]string, 0, len(r.named)+1)
	if r.fallback != nil {
		names = append(names, r.fallback.Name())
	}
	for name := range r.named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the adapter and the model name to send upstream.
func (r *Registry) Resolve(model string) (Adapter, string, error) {
	if prefix, rest, ok := strings.Cut(model, ":"); ok && prefix != "" && rest != "" {
		a, found := r.named[prefix]
		if !found {
			return nil, "", &AdapterError{Err: fmt.Errorf("model %q: adapter %q not configured", model, prefix)}
		}
		return a, rest, nil
	}
	if r.fallback == nil {
		return nil, "", &AdapterError{Err: fmt.Errorf("model %q: no default adapter configured", model)}
	}
	return r.fallback, model, nil
}

// Complete resolves the model and forwards the call.
func (r *Registry) Complete(ctx context.Context, model string, messages []Message, opts Options) (*Completion, error) {
	a, upstreamModel, err := r.Resolve(model)
	if err != nil {
		return nil, err
	}
	completion, err := a.Complete(ctx, upstreamModel, messages, opts)
	if err != nil {
		return nil, err
	}
	completion.Model = model
	return completion, nil
}
