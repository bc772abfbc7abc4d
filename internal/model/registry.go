package model

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	// ErrBackendNotFound is returned when a backend is not registered.
	ErrBackendNotFound = errors.New("model backend not found")
	// ErrBackendExists is returned when trying to register a duplicate backend.
	ErrBackendExists = errors.New("model backend already registered")
)

// Options carries everything a backend factory may need.
type Options struct {
	URL     string
	Timeout time.Duration
	Command string
	Logger  *slog.Logger
}

// Factory constructs a backend from options.
type Factory func(opts Options) (Model, error)

// Registry maps backend names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// NewDefaultRegistry returns a registry with the http and exec backends.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("http", func(opts Options) (Model, error) {
		return NewHTTPModel(HTTPConfig{BaseURL: opts.URL, Timeout: opts.Timeout}, nil, opts.Logger)
	})
	_ = r.Register("exec", func(opts Options) (Model, error) {
		return NewExecModel(opts.Command, opts.Timeout, opts.Logger)
	})
	return r
}

// Register adds a factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return ErrBackendExists
	}

	r.factories[name] = factory
	return nil
}

// Open constructs the backend registered under name.
func (r *Registry) Open(name string, opts Options) (Model, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotFound, name)
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", name, err)
	}
	return m, nil
}

// List returns all registered backend names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
