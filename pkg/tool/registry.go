package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/antzucaro/matchr"
)

// Handler executes a tool against a validated request. Structured tools
// return a JSON-marshallable value; resource tools return []byte or string.
type Handler func(ctx context.Context, req Request) (any, error)

// suggestionThreshold is the minimum Jaro-Winkler similarity for an unknown
// tool name to be answered with a "did you mean" hint.
const suggestionThreshold = 0.8

type entry struct {
	desc    Descriptor
	handler Handler
}

// Registry maps tool names to descriptors and handlers.
//
// Registration is expected to finish during startup, before the first call is
// served. Lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool. It returns a [*DuplicateNameError] when the name is
// already taken, or a plain error when d is malformed or h is nil.
// The descriptor is copied; later changes to d do not affect the registry.
func (r *Registry) Register(d Descriptor, h Handler) error {
	if h == nil {
		return fmt.Errorf("tool: %q must have a non-nil handler", d.Name)
	}
	if err := d.check(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[d.Name]; ok {
		return &DuplicateNameError{Name: d.Name}
	}
	r.entries[d.Name] = entry{desc: d.clone(), handler: h}
	r.order = append(r.order, d.Name)
	return nil
}

// Resolve returns the handler registered under name, or an
// [*UnknownToolError].
func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, r.unknown(name)
	}
	return e.handler, nil
}

// Descriptor returns a copy of the descriptor registered under name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc.clone(), true
}

// Descriptors returns copies of all descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].desc.clone())
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Call runs the full pipeline for one invocation: resolve, validate, handle,
// encode. Resolution and validation failures are returned before the handler
// is invoked.
func (r *Registry) Call(ctx context.Context, name string, raw map[string]any) (EncodedResponse, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return EncodedResponse{}, r.unknown(name)
	}

	req, err := Validate(e.desc, raw)
	if err != nil {
		return EncodedResponse{}, err
	}

	result, err := e.handler(ctx, req)
	if err != nil {
		return EncodedResponse{}, err
	}
	return Encode(result, e.desc.Result, req)
}

// unknown builds an UnknownToolError, attaching the most similar registered
// name when one is close enough.
func (r *Registry) unknown(name string) *UnknownToolError {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best, bestScore := "", suggestionThreshold
	for _, candidate := range r.order {
		if s := matchr.JaroWinkler(name, candidate, false); s >= bestScore {
			best, bestScore = candidate, s
		}
	}
	return &UnknownToolError{Name: name, Suggestion: best}
}
