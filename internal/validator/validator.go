// Package validator checks flow definitions before any conversation runs on them.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/registry"
	"github.com/aretw0/leadflow/pkg/schema"
	"github.com/aretw0/leadflow/pkg/state"
)

// Error codes.
const (
	CodeSchema               = "SCHEMA_ERROR"
	CodeDuplicateID          = "DUPLICATE_ID"
	CodeInvalidStart         = "INVALID_START"
	CodeEmptyChoices         = "EMPTY_CHOICES"
	CodeDuplicateOptionValue = "DUPLICATE_OPTION_VALUE"
	CodeInvalidReference     = "INVALID_REFERENCE"
	CodeUnreachable          = "UNREACHABLE_STEP"
	CodeCycle                = "CYCLE_DETECTED"
	CodeInvalidParams        = "INVALID_PARAMS"
)

// Warning codes.
const (
	CodeDeadEnd         = "DEAD_END"
	CodeTerminalAction  = "TERMINAL_ACTION"
	CodeLongMessage     = "LONG_MESSAGE"
	CodeTooManyOptions  = "TOO_MANY_OPTIONS"
	CodeShortOption     = "SHORT_OPTION"
	CodeUnknownAction   = "UNKNOWN_ACTION"
	CodeUnknownVariable = "UNKNOWN_VARIABLE"
)

const (
	maxMessageLength = 1000
	maxOptions       = 10
	minOptionLength  = 2
)

// ActionCatalog exposes the registered actions. *registry.Registry satisfies it.
type ActionCatalog interface {
	Lookup(name string) (registry.Definition, bool)
}

type config struct {
	actions ActionCatalog
	known   map[string]bool
}

// Option configures validation.
type Option func(*config)

// WithActions enables params and unknown-action checks against the catalog.
func WithActions(c ActionCatalog) Option {
	return func(cfg *config) {
		cfg.actions = c
	}
}

// WithKnownVariables declares variables supplied by the caller (e.g. lead data)
// so placeholders referencing them are not reported.
func WithKnownVariables(names ...string) Option {
	return func(cfg *config) {
		for _, n := range names {
			cfg.known[n] = true
		}
	}
}

// Result holds the issues found in a flow.
type Result struct {
	Errors   []domain.ValidationIssue `json:"errors"`
	Warnings []domain.ValidationIssue `json:"warnings"`
}

// Valid reports whether no errors were found. Warnings do not invalidate a flow.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns a *domain.FlowValidationError when the flow is invalid.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &domain.FlowValidationError{Issues: r.Errors}
}

// Summary renders a one-line description of the result.
func Summary(r Result) string {
	if len(r.Errors) == 0 && len(r.Warnings) == 0 {
		return "Flow is valid with no warnings."
	}
	return fmt.Sprintf("%d error(s), %d warning(s)", len(r.Errors), len(r.Warnings))
}

// ValidateFlow is Validate(...).Err().
func ValidateFlow(flow *domain.FlowDefinition, opts ...Option) error {
	return Validate(flow, opts...).Err()
}

type checker struct {
	cfg    config
	flow   *domain.FlowDefinition
	index  map[string]domain.Step
	result Result
}

func (c *checker) fail(code, stepID, format string, args ...any) {
	c.result.Errors = append(c.result.Errors, domain.ValidationIssue{
		Code: code, Severity: domain.SeverityError, StepID: stepID, Message: fmt.Sprintf(format, args...),
	})
}

func (c *checker) warn(code, stepID, format string, args ...any) {
	c.result.Warnings = append(c.result.Warnings, domain.ValidationIssue{
		Code: code, Severity: domain.SeverityWarning, StepID: stepID, Message: fmt.Sprintf(format, args...),
	})
}

// Validate runs every check and collects errors and warnings.
func Validate(flow *domain.FlowDefinition, opts ...Option) Result {
	cfg := config{known: make(map[string]bool)}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &checker{cfg: cfg, flow: flow}
	if flow == nil {
		c.fail(CodeSchema, "", "flow definition is nil")
		return c.result
	}
	if len(flow.Steps) == 0 {
		c.fail(CodeSchema, "", "flow has no steps")
		return c.result
	}

	c.index = flow.Index()
	c.checkSteps()
	c.checkStart()
	c.checkReferences()
	c.checkReachability()
	c.checkCycles()
	c.checkActions()
	c.checkContent()
	c.checkVariables()
	return c.result
}

func (c *checker) checkSteps() {
	seen := make(map[string]bool)
	for i, s := range c.flow.Steps {
		id := s.StepID()
		if strings.TrimSpace(id) == "" {
			c.fail(CodeSchema, "", "step #%d has no id", i)
			continue
		}
		if seen[id] {
			c.fail(CodeDuplicateID, id, "step id %q is used more than once", id)
		}
		seen[id] = true

		switch st := s.(type) {
		case *domain.MessageStep:
			if strings.TrimSpace(st.Text) == "" {
				c.fail(CodeSchema, id, "message step has no text")
			}
		case *domain.ChoiceStep:
			if strings.TrimSpace(st.Prompt) == "" {
				c.fail(CodeSchema, id, "choice step has no prompt")
			}
			if len(st.Options) == 0 {
				c.fail(CodeEmptyChoices, id, "choice step has no options")
			}
			values := make(map[string]bool)
			for j, opt := range st.Options {
				if opt.Value == "" {
					c.fail(CodeSchema, id, "option #%d has no value", j)
				} else if values[opt.Value] {
					c.fail(CodeDuplicateOptionValue, id, "option value %q is used more than once", opt.Value)
				}
				values[opt.Value] = true
				if strings.TrimSpace(opt.Text) == "" {
					c.fail(CodeSchema, id, "option #%d has no text", j)
				}
				if opt.Next == "" {
					c.fail(CodeSchema, id, "option %q has no next step", opt.Value)
				}
			}
		case *domain.ExecuteStep:
			if strings.TrimSpace(st.Action) == "" {
				c.fail(CodeSchema, id, "execute step has no action")
			}
		default:
			c.fail(CodeSchema, id, "%v: %T", domain.ErrUnknownStepType, s)
		}
	}
}

func (c *checker) checkStart() {
	if c.flow.Start == "" {
		c.fail(CodeInvalidStart, "", "flow has no start step")
		return
	}
	if _, ok := c.index[c.flow.Start]; !ok {
		c.fail(CodeInvalidStart, c.flow.Start, "start step %q does not exist", c.flow.Start)
	}
}

func (c *checker) checkReferences() {
	for _, s := range c.flow.Steps {
		for _, target := range domain.Targets(s) {
			if _, ok := c.index[target]; !ok {
				c.fail(CodeInvalidReference, s.StepID(), "step %q points to missing step %q", s.StepID(), target)
			}
		}
	}
}

func (c *checker) checkReachability() {
	if _, ok := c.index[c.flow.Start]; !ok {
		return
	}

	reachable := map[string]bool{c.flow.Start: true}
	queue := []string{c.flow.Start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, target := range domain.Targets(c.index[current]) {
			if _, exists := c.index[target]; !exists || reachable[target] {
				continue
			}
			reachable[target] = true
			queue = append(queue, target)
		}
	}

	reported := make(map[string]bool)
	for _, s := range c.flow.Steps {
		id := s.StepID()
		if id == "" || reachable[id] || reported[id] {
			continue
		}
		reported[id] = true
		c.fail(CodeUnreachable, id, "step %q is not reachable from the start", id)
	}
}

// checkCycles rejects loops made only of message and execute steps.
// Such a loop never waits for input, so a turn entering it would never end.
// Loops through a choice step are fine: every pass consumes an answer.
func (c *checker) checkCycles() {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		stack = append(stack, id)

		step := c.index[id]
		for _, target := range domain.Targets(step) {
			next, ok := c.index[target]
			if !ok || next.Type() == domain.StepTypeChoice {
				continue
			}
			switch color[target] {
			case white:
				visit(target)
			case grey:
				start := 0
				for i, sid := range stack {
					if sid == target {
						start = i
						break
					}
				}
				path := append(append([]string{}, stack[start:]...), target)
				c.fail(CodeCycle, target, "cycle without user input: %s", strings.Join(path, " -> "))
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, s := range c.flow.Steps {
		id := s.StepID()
		if s.Type() == domain.StepTypeChoice || color[id] != white || c.index[id] != s {
			continue
		}
		visit(id)
	}
}

func (c *checker) checkActions() {
	if c.cfg.actions == nil {
		return
	}
	for _, s := range c.flow.Steps {
		st, ok := s.(*domain.ExecuteStep)
		if !ok || st.Action == "" {
			continue
		}
		def, ok := c.cfg.actions.Lookup(st.Action)
		if !ok {
			c.warn(CodeUnknownAction, st.ID, "action %q has no registered handler; the caller must perform it", st.Action)
			continue
		}
		for _, err := range schema.ValidationErrors(schema.Validate(def.Params, st.Params)) {
			c.fail(CodeInvalidParams, st.ID, "action %q: %v", st.Action, err)
		}
	}
}

func (c *checker) checkContent() {
	for _, s := range c.flow.Steps {
		switch st := s.(type) {
		case *domain.MessageStep:
			if st.Next == "" {
				c.warn(CodeDeadEnd, st.ID, "step %q ends the conversation", st.ID)
			}
			if n := len([]rune(st.Text)); n > maxMessageLength {
				c.warn(CodeLongMessage, st.ID, "message has %d characters", n)
			}
		case *domain.ExecuteStep:
			if st.Next == "" {
				c.warn(CodeTerminalAction, st.ID, "action step %q has no continuation", st.ID)
			}
		case *domain.ChoiceStep:
			if len(st.Options) > maxOptions {
				c.warn(CodeTooManyOptions, st.ID, "choice has %d options; WhatsApp lists show at most %d", len(st.Options), maxOptions)
			}
			for _, opt := range st.Options {
				if n := len([]rune(strings.TrimSpace(opt.Text))); n > 0 && n < minOptionLength {
					c.warn(CodeShortOption, st.ID, "option text %q is very short", opt.Text)
				}
			}
		}
	}
}

// checkVariables warns about placeholders no step, action or caller provides.
func (c *checker) checkVariables() {
	provided := make(map[string]bool, len(c.cfg.known))
	for name := range c.cfg.known {
		provided[name] = true
	}
	for _, s := range c.flow.Steps {
		switch st := s.(type) {
		case *domain.ChoiceStep:
			provided[st.ID] = true
			provided[st.ID+"_text"] = true
		case *domain.ExecuteStep:
			if c.cfg.actions == nil {
				continue
			}
			if def, ok := c.cfg.actions.Lookup(st.Action); ok {
				for _, out := range def.Outputs {
					provided[out] = true
				}
			}
		}
	}

	report := func(stepID, text string) {
		for _, path := range state.Placeholders(text) {
			root := strings.SplitN(path, ".", 2)[0]
			if !provided[root] {
				c.warn(CodeUnknownVariable, stepID, "placeholder {{%s}} is not set by any step; it will be shown as-is", path)
			}
		}
	}
	for _, s := range c.flow.Steps {
		switch st := s.(type) {
		case *domain.MessageStep:
			report(st.ID, st.Text)
		case *domain.ChoiceStep:
			report(st.ID, st.Prompt)
			for _, opt := range st.Options {
				report(st.ID, opt.Text)
			}
		}
	}
}
