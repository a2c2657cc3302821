package dsl

import (
	"fmt"

	"github.com/aretw0/leadflow/internal/validator"
	"github.com/aretw0/leadflow/pkg/domain"
)

// Builder manages the flow construction.
type Builder struct {
	id      string
	version string
	start   string
	order   []string
	steps   map[string]*StepBuilder
	opts    []validator.Option
}

// New creates a new flow builder. The first step added is the start step
// unless Start names another one.
func New(id string) *Builder {
	return &Builder{
		id:      id,
		version: "1.0.0",
		steps:   make(map[string]*StepBuilder),
	}
}

// Version sets the flow version.
func (b *Builder) Version(v string) *Builder {
	b.version = v
	return b
}

// Start overrides the start step.
func (b *Builder) Start(id string) *Builder {
	b.start = id
	return b
}

// ValidateWith adds validator options used by Build, such as the action
// catalog or caller-supplied variables.
func (b *Builder) ValidateWith(opts ...validator.Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Add creates a new step in the flow.
// If the step already exists, it returns the existing builder.
func (b *Builder) Add(id string) *StepBuilder {
	if sb, ok := b.steps[id]; ok {
		return sb
	}
	sb := &StepBuilder{id: id, builder: b}
	b.steps[id] = sb
	b.order = append(b.order, id)
	return sb
}

// Build assembles the flow and validates it.
// The returned error is a *domain.FlowValidationError when the graph is invalid.
func (b *Builder) Build() (*domain.FlowDefinition, error) {
	flow := &domain.FlowDefinition{ID: b.id, Version: b.version, Start: b.start}
	if flow.Start == "" && len(b.order) > 0 {
		flow.Start = b.order[0]
	}
	for _, id := range b.order {
		step, err := b.steps[id].step()
		if err != nil {
			return nil, err
		}
		flow.Steps = append(flow.Steps, step)
	}

	if err := validator.ValidateFlow(flow, b.opts...); err != nil {
		return nil, fmt.Errorf("flow %s: %w", b.id, err)
	}
	return flow, nil
}

// MustBuild is Build for flows known at compile time. It panics on error.
func (b *Builder) MustBuild() *domain.FlowDefinition {
	flow, err := b.Build()
	if err != nil {
		panic(err)
	}
	return flow
}
