// Package registry maps action names used by execute steps to their handlers.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/schema"
)

// Handler performs an action on behalf of an execute step.
type Handler interface {
	Perform(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error)

// Perform calls f.
func (f HandlerFunc) Perform(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
	return f(ctx, req)
}

// Fallbacker is implemented by handlers that can produce a degraded outcome
// when Perform fails without returning one (including panics).
type Fallbacker interface {
	Fallback(req domain.ActionRequest) domain.ActionOutcome
}

// Definition describes a registered action.
type Definition struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Params      schema.Schema `json:"params,omitempty"`
	// Outputs lists the variables the action writes, so flows may reference them.
	Outputs []string `json:"outputs,omitempty"`
	Handler Handler  `json:"-"`
}

// RegisterOption configures a Definition.
type RegisterOption func(*Definition)

// WithParamsSchema declares the params the action accepts.
func WithParamsSchema(s schema.Schema) RegisterOption {
	return func(d *Definition) {
		d.Params = s
	}
}

// WithOutputs declares the variables the action writes.
func WithOutputs(names ...string) RegisterOption {
	return func(d *Definition) {
		d.Outputs = append(d.Outputs, names...)
	}
}

// WithDescription sets a human-readable description.
func WithDescription(desc string) RegisterOption {
	return func(d *Definition) {
		d.Description = desc
	}
}

// Registry manages the available actions. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Definition
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]Definition),
	}
}

// Register adds an action. An existing action with the same name is overwritten.
func (r *Registry) Register(name string, h Handler, opts ...RegisterOption) {
	def := Definition{Name: name, Handler: h}
	for _, opt := range opts {
		opt(&def)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = def
}

// RegisterFunc is Register for plain functions.
func (r *Registry) RegisterFunc(name string, fn HandlerFunc, opts ...RegisterOption) {
	r.Register(name, fn, opts...)
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.actions[name]
	return def, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns every registered definition, sorted by name.
func (r *Registry) Definitions() []Definition {
	names := r.Names()
	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		if def, ok := r.Lookup(name); ok {
			defs = append(defs, def)
		}
	}
	return defs
}

// Perform looks up the action by req.Name and runs it.
func (r *Registry) Perform(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
	def, ok := r.Lookup(req.Name)
	if !ok {
		return domain.ActionOutcome{}, fmt.Errorf("%w: %s", domain.ErrUnknownAction, req.Name)
	}
	return def.Handler.Perform(ctx, req)
}
