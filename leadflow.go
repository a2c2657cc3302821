package leadflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/leadflow/internal/compiler"
	"github.com/aretw0/leadflow/internal/runtime"
	"github.com/aretw0/leadflow/internal/validator"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/registry"
)

// Engine is the high-level entry point for the leadflow library.
// It wraps the internal runtime for one flow and is safe for concurrent use.
// Turns of the same conversation must be serialized by the caller;
// pkg/session does that when conversations are persisted.
type Engine struct {
	runtime *runtime.Engine
}

// Option defines a functional option for configuring the Engine.
type Option func(*config)

type config struct {
	opts []runtime.Option
}

// WithActions sets the handlers of execute steps.
func WithActions(reg *registry.Registry) Option {
	return func(c *config) {
		c.opts = append(c.opts, runtime.WithActions(reg))
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.opts = append(c.opts, runtime.WithLifecycleHooks(hooks))
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.opts = append(c.opts, runtime.WithLogger(logger))
	}
}

// WithInvalidChoiceMessage replaces the text shown before re-asking a choice.
func WithInvalidChoiceMessage(msg string) Option {
	return func(c *config) {
		c.opts = append(c.opts, runtime.WithInvalidChoiceMessage(msg))
	}
}

// WithActionTimeout bounds each action handler call.
func WithActionTimeout(d time.Duration) Option {
	return func(c *config) {
		c.opts = append(c.opts, runtime.WithActionTimeout(d))
	}
}

// WithKnownVariables declares variables the host sets itself, so flow
// validation does not warn about them.
func WithKnownVariables(names ...string) Option {
	return func(c *config) {
		c.opts = append(c.opts, runtime.WithKnownVariables(names...))
	}
}

// New validates flow and returns an engine for it.
// An invalid flow yields a *domain.FlowValidationError.
func New(flow *domain.FlowDefinition, opts ...Option) (*Engine, error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	rt, err := runtime.NewEngine(flow, c.opts...)
	if err != nil {
		return nil, err
	}
	return &Engine{runtime: rt}, nil
}

// Load parses a flow document (JSON or YAML, English or Portuguese keys)
// and returns an engine for it.
func Load(data []byte, opts ...Option) (*Engine, error) {
	flow, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return New(flow, opts...)
}

// Parse decodes a flow document without validating its graph.
func Parse(data []byte) (*domain.FlowDefinition, error) {
	return compiler.NewParser().Parse(data)
}

// ParseFile reads and decodes the flow document at path.
func ParseFile(path string) (*domain.FlowDefinition, error) {
	return compiler.NewParser().ParseFile(path)
}

// Report lists the problems found in a flow. Errors make it unusable.
type Report struct {
	Errors   []domain.ValidationIssue
	Warnings []domain.ValidationIssue
}

// Valid reports whether the flow has no errors.
func (r Report) Valid() bool {
	return len(r.Errors) == 0
}

// Validate checks flow without building an engine. Actions, when given,
// lets the check verify execute step params against their schemas.
func Validate(flow *domain.FlowDefinition, actions *registry.Registry, knownVariables ...string) Report {
	opts := []validator.Option{validator.WithKnownVariables(knownVariables...)}
	if actions != nil {
		opts = append(opts, validator.WithActions(actions))
	}
	res := validator.Validate(flow, opts...)
	return Report{Errors: res.Errors, Warnings: res.Warnings}
}

// Flow returns the definition the engine runs.
func (e *Engine) Flow() *domain.FlowDefinition {
	return e.runtime.Flow()
}

// ProcessMessage runs one turn from a bare step id and variable map.
// An empty currentStepID starts the flow.
func (e *Engine) ProcessMessage(ctx context.Context, text, currentStepID string, vars map[string]any) (domain.TurnResult, error) {
	return e.runtime.ProcessMessage(ctx, text, currentStepID, vars)
}

// ProcessTurn runs one turn against a full conversation state.
func (e *Engine) ProcessTurn(ctx context.Context, s domain.ConversationState, text string) (domain.TurnResult, error) {
	return e.runtime.ProcessTurn(ctx, s, text)
}

// Resume continues a turn that halted on an ActionSignal with the outcome
// the host produced.
func (e *Engine) Resume(ctx context.Context, s domain.ConversationState, outcome domain.ActionOutcome) (domain.TurnResult, error) {
	return e.runtime.Resume(ctx, s, outcome)
}
