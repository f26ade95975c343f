package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrBackendNotFound is returned when no factory is registered under a name.
var ErrBackendNotFound = errors.New("backend not found")

// Factory produces a backend instance. It is called on every Resolve.
type Factory func() Backend

// Instance returns a factory that always yields b.
func Instance(b Backend) Factory {
	return func() Backend { return b }
}

// Registry maps backend names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name. Backends resolved before
// the call keep working; later resolves see the new factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Unregister removes name. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, name)
}

// Resolve returns a backend for name.
func (r *Registry) Resolve(name string) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok || f == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotFound, name)
	}
	b := f()
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotFound, name)
	}
	return b, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns a Backend that resolves name from reg on every call, so
// re-registration is picked up by long-lived holders such as classifiers.
func Lookup(reg *Registry, name string) Backend {
	return &lookupBackend{reg: reg, name: name}
}

// IsSimulated reports whether b only produces canned replies. A Lookup
// backend is judged by what is registered under its name right now.
func IsSimulated(b Backend) bool {
	switch v := b.(type) {
	case *SimulatedBackend:
		return true
	case *lookupBackend:
		current, err := v.reg.Resolve(v.name)
		return err == nil && IsSimulated(current)
	}
	return false
}

type lookupBackend struct {
	reg  *Registry
	name string
}

func (l *lookupBackend) Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error) {
	b, err := l.reg.Resolve(l.name)
	if err != nil {
		return nil, err
	}
	return b.Generate(ctx, prompt, maxTokens)
}
