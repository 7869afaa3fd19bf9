package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/stockmcp/pkg/marketdata"
	"github.com/MrWong99/stockmcp/pkg/marketdata/fixture"
	"github.com/MrWong99/stockmcp/pkg/marketdata/yahoo"
)

// ErrProviderNotRegistered is returned by [Registry.CreateBackend] when no
// factory has been registered under the requested backend name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// BackendFactory builds a backend from its configuration entry.
type BackendFactory func(BackendEntry) (marketdata.Backend, error)

// Registry maps backend names to their constructor functions. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]BackendFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]BackendFactory)}
}

// DefaultRegistry returns a [Registry] with the built-in "yahoo" and
// "fixture" backends registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterBackend("yahoo", newYahoo)
	r.RegisterBackend("fixture", newFixture)
	return r
}

// RegisterBackend registers a backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterBackend(name string, factory BackendFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = factory
}

// CreateBackend instantiates the backend registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateBackend(entry BackendEntry) (marketdata.Backend, error) {
	r.mu.RLock()
	factory, ok := r.backends[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: backend/%q", ErrProviderNotRegistered, entry.Name)
	}
	b, err := factory(entry)
	if err != nil {
		return nil, fmt.Errorf("config: create backend %q: %w", entry.Name, err)
	}
	return b, nil
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func newYahoo(e BackendEntry) (marketdata.Backend, error) {
	var opts []yahoo.Option
	if e.BaseURL != "" {
		opts = append(opts, yahoo.WithBaseURL(e.BaseURL))
	}
	if e.CookieURL != "" {
		opts = append(opts, yahoo.WithCookieURL(e.CookieURL))
	}
	if e.UserAgent != "" {
		opts = append(opts, yahoo.WithUserAgent(e.UserAgent))
	}
	if e.Timeout > 0 {
		opts = append(opts, yahoo.WithTimeout(e.Timeout.Std()))
	}
	return yahoo.New(opts...)
}

func newFixture(e BackendEntry) (marketdata.Backend, error) {
	if e.Path == "" {
		return nil, errors.New("path is required")
	}
	return fixture.Load(e.Path)
}
