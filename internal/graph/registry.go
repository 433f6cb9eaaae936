package graph

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Factory builds an operation from its parameters. decode fills a
// parameter struct from the serialized form; it is nil when the node has
// no parameters, in which case defaults apply.
type Factory func(decode func(v any) error) (Operation, error)

// Registry maps operation type names to factories. Built-in and plugin
// operations register at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(typ string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[typ]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, typ)
	}
	r.factories[typ] = f
	return nil
}

func (r *Registry) MustRegister(typ string, f Factory) {
	if err := r.Register(typ, f); err != nil {
		panic(err)
	}
}

// New instantiates an operation of type typ.
func (r *Registry) New(typ string, decode func(v any) error) (Operation, error) {
	r.mu.RLock()
	f, ok := r.factories[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	if decode == nil {
		decode = func(any) error { return nil }
	}
	op, err := f(decode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", typ, err)
	}
	return op, nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}
