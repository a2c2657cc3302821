// Package runtime drives conversations through a validated flow definition.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/leadflow/internal/logging"
	"github.com/aretw0/leadflow/internal/validator"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/state"
)

// DefaultInvalidChoiceMessage precedes a re-presented choice after an unrecognized answer.
const DefaultInvalidChoiceMessage = "Opção inválida. Por favor, escolha uma das opções abaixo."

// Engine is the conversation state machine for one flow.
// It holds no per-conversation data and is safe for concurrent use;
// turns of the same conversation must be serialized by the caller.
type Engine struct {
	flow  *domain.FlowDefinition
	index map[string]domain.Step

	exec   Executor
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	invalidChoiceMessage string
	knownVariables       []string
	maxChain             int
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithActions sets the action handlers used by execute steps.
// Execute steps naming an action missing here halt the turn with an ActionSignal.
func WithActions(actions Actions) Option {
	return func(e *Engine) {
		e.exec.Actions = actions
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithInvalidChoiceMessage overrides DefaultInvalidChoiceMessage.
func WithInvalidChoiceMessage(msg string) Option {
	return func(e *Engine) {
		e.invalidChoiceMessage = msg
	}
}

// WithActionTimeout bounds each action handler call.
func WithActionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.exec.Timeout = d
	}
}

// WithKnownVariables declares caller-supplied variables for flow validation.
func WithKnownVariables(names ...string) Option {
	return func(e *Engine) {
		e.knownVariables = append(e.knownVariables, names...)
	}
}

// WithClock sets the clock used to stamp history entries.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.exec.States.Clock = clock
	}
}

// NewEngine validates flow and returns an engine for it.
// An invalid flow yields a *domain.FlowValidationError.
func NewEngine(flow *domain.FlowDefinition, opts ...Option) (*Engine, error) {
	e := &Engine{
		flow:                 flow,
		logger:               logging.NewNop(),
		invalidChoiceMessage: DefaultInvalidChoiceMessage,
	}
	for _, opt := range opts {
		opt(e)
	}

	vopts := []validator.Option{validator.WithKnownVariables(e.knownVariables...)}
	if e.exec.Actions != nil {
		vopts = append(vopts, validator.WithActions(e.exec.Actions))
	}
	res := validator.Validate(flow, vopts...)
	if err := res.Err(); err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		e.logger.Debug("flow warning", "flow", flow.ID, "code", w.Code, "step", w.StepID, "msg", w.Message)
	}

	e.index = flow.Index()
	e.maxChain = len(flow.Steps) + 1
	return e, nil
}

// Flow returns the definition the engine runs.
func (e *Engine) Flow() *domain.FlowDefinition {
	return e.flow
}

// ProcessMessage runs one turn from a bare step id and variable set.
// An empty currentStepID starts the conversation at the flow's start step.
func (e *Engine) ProcessMessage(ctx context.Context, text, currentStepID string, vars map[string]any) (domain.TurnResult, error) {
	s := state.SetVariables(state.Initialize(currentStepID), vars)
	return e.ProcessTurn(ctx, s, text)
}

// ProcessTurn consumes one inbound message against s.
//
// A conversation that has not started jumps to the start step and the text is
// not treated as an answer. At a choice step the text is the answer; an
// unrecognized answer re-presents the same choice with Retry set and s unchanged.
// A message or execute step left pending by a previous turn is run again.
// From there, steps chain until a choice is presented, an unhandled action
// halts the turn, or the flow ends.
func (e *Engine) ProcessTurn(ctx context.Context, s domain.ConversationState, text string) (domain.TurnResult, error) {
	t := e.newTurn()

	if !s.Started() {
		s = e.exec.States.MoveToStep(s, e.flow.Start)
		return e.chain(ctx, t, s, e.flow.Start)
	}

	step, ok := e.index[s.CurrentStepID]
	if !ok {
		return domain.TurnResult{}, fmt.Errorf("%w: %s", domain.ErrStepNotFound, s.CurrentStepID)
	}

	choice, ok := step.(*domain.ChoiceStep)
	if !ok {
		return e.chain(ctx, t, s, step.StepID())
	}

	answer, matched := e.resolveChoice(choice, s, text)
	if !matched {
		return e.retry(ctx, t, choice, s, text), nil
	}
	t.steps = append(t.steps, choice.ID)
	next, s, err := e.exec.ChoiceResponse(choice, s, answer)
	if err != nil {
		return domain.TurnResult{}, err
	}
	return e.chain(ctx, t, s, next)
}

// Resume continues a turn halted by an ActionSignal once the caller has
// performed the action. The outcome is merged into s and chaining proceeds
// from s.CurrentStepID without consuming any input.
func (e *Engine) Resume(ctx context.Context, s domain.ConversationState, outcome domain.ActionOutcome) (domain.TurnResult, error) {
	t := e.newTurn()
	if len(outcome.Variables) > 0 {
		s = state.SetVariables(s, outcome.Variables)
	}
	if outcome.Message != "" {
		t.messages = append(t.messages, outcome.Message)
	}
	return e.chain(ctx, t, s, s.CurrentStepID)
}

type turn struct {
	start    time.Time
	messages []string
	steps    []string
}

func (e *Engine) newTurn() *turn {
	return &turn{start: time.Now()}
}

// chain runs steps from id until user input is needed or the flow ends.
func (e *Engine) chain(ctx context.Context, t *turn, s domain.ConversationState, id string) (domain.TurnResult, error) {
	for hops := 0; ; hops++ {
		if state.IsComplete(id) {
			s.CurrentStepID = ""
			return e.finish(ctx, t, s, domain.TurnResult{Complete: true}), nil
		}
		if hops >= e.maxChain {
			return domain.TurnResult{}, fmt.Errorf("%w: stopped at %s after %d steps", domain.ErrChainLimit, id, hops)
		}
		if err := ctx.Err(); err != nil {
			return domain.TurnResult{}, err
		}

		step, ok := e.index[id]
		if !ok {
			return domain.TurnResult{}, fmt.Errorf("%w: %s", domain.ErrStepNotFound, id)
		}
		e.emitStepEnter(ctx, step, "")
		t.steps = append(t.steps, step.StepID())

		var next string
		switch st := step.(type) {
		case *domain.MessageStep:
			res := e.exec.Message(st, s)
			t.messages = append(t.messages, res.Message)
			next = res.NextStepID

		case *domain.ChoiceStep:
			res := e.exec.Choice(st, s)
			t.messages = append(t.messages, res.Question)
			return e.finish(ctx, t, s, domain.TurnResult{NextStepID: st.ID, Choices: res.Options}), nil

		case *domain.ExecuteStep:
			def, ok := e.exec.lookup(st.Action)
			req := e.exec.request(st, s)
			if !ok {
				e.logger.Debug("action halted turn", "action", st.Action, "step", st.ID)
				signal := &domain.ActionSignal{Name: st.Action, StepID: st.ID, Params: req.Params}
				if st.Next == "" {
					s.CurrentStepID = ""
					return e.finish(ctx, t, s, domain.TurnResult{Action: signal, Complete: true}), nil
				}
				s = e.exec.States.MoveToStep(s, st.Next)
				return e.finish(ctx, t, s, domain.TurnResult{Action: signal, NextStepID: st.Next}), nil
			}

			e.emitActionCall(ctx, st)
			began := time.Now()
			outcome, err := e.exec.perform(ctx, def, req)
			e.emitActionReturn(ctx, st, time.Since(began), err != nil)
			if err != nil {
				e.logger.Warn("action failed, using fallback", "action", st.Action, "step", st.ID, "err", err)
			}

			if len(outcome.Variables) > 0 {
				s = state.SetVariables(s, outcome.Variables)
			}
			if outcome.Message != "" {
				t.messages = append(t.messages, outcome.Message)
			}
			next = st.Next

		default:
			return domain.TurnResult{}, fmt.Errorf("%w: %T", domain.ErrUnknownStepType, step)
		}

		if !state.IsComplete(next) {
			s = e.exec.States.MoveToStep(s, next)
		}
		id = next
	}
}

func (e *Engine) retry(ctx context.Context, t *turn, step *domain.ChoiceStep, s domain.ConversationState, text string) domain.TurnResult {
	e.logger.Debug("invalid choice", "step", step.ID, "input", text)
	e.emitInvalidChoice(ctx, step, text)

	t.steps = append(t.steps, step.ID)
	res := e.exec.Choice(step, s)
	if e.invalidChoiceMessage != "" {
		t.messages = append(t.messages, e.invalidChoiceMessage)
	}
	t.messages = append(t.messages, res.Question)
	return e.finish(ctx, t, s, domain.TurnResult{NextStepID: step.ID, Choices: res.Options, Retry: true})
}

func (e *Engine) finish(ctx context.Context, t *turn, s domain.ConversationState, r domain.TurnResult) domain.TurnResult {
	r.Messages = t.messages
	r.Response = strings.Join(t.messages, "\n\n")
	r.Steps = t.steps
	r.State = s
	r.Variables = s.Variables
	e.emitTurnComplete(ctx, t, r)
	return r
}

// resolveChoice maps free text to an option value. Besides the exact value it
// accepts the value or label in any case and the 1-based option number.
func (e *Engine) resolveChoice(step *domain.ChoiceStep, s domain.ConversationState, text string) (string, bool) {
	if _, ok := step.Option(text); ok {
		return text, true
	}
	clean := strings.TrimSpace(text)
	if clean == "" {
		return "", false
	}
	for _, opt := range step.Options {
		if strings.EqualFold(clean, strings.TrimSpace(opt.Value)) ||
			strings.EqualFold(clean, strings.TrimSpace(opt.Text)) ||
			strings.EqualFold(clean, strings.TrimSpace(state.ReplaceVariables(opt.Text, s))) {
			return opt.Value, true
		}
	}
	if n, err := strconv.Atoi(clean); err == nil && n >= 1 && n <= len(step.Options) {
		return step.Options[n-1].Value, true
	}
	return "", false
}

// IsInvalidChoice reports whether err rejects a choice answer.
func IsInvalidChoice(err error) bool {
	return errors.Is(err, ErrInvalidChoice)
}

func (e *Engine) base(typ domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: typ, FlowID: e.flow.ID}
}

func (e *Engine) emitStepEnter(ctx context.Context, step domain.Step, input string) {
	if e.hooks.OnStepEnter == nil {
		return
	}
	e.hooks.OnStepEnter(ctx, &domain.StepEvent{
		EventBase: e.base(domain.EventStepEnter),
		StepID:    step.StepID(),
		StepType:  step.Type(),
		Input:     input,
	})
}

func (e *Engine) emitInvalidChoice(ctx context.Context, step *domain.ChoiceStep, input string) {
	if e.hooks.OnInvalidChoice == nil {
		return
	}
	e.hooks.OnInvalidChoice(ctx, &domain.StepEvent{
		EventBase: e.base(domain.EventInvalidChoice),
		StepID:    step.ID,
		StepType:  step.Type(),
		Input:     input,
	})
}

func (e *Engine) emitActionCall(ctx context.Context, step *domain.ExecuteStep) {
	if e.hooks.OnActionCall == nil {
		return
	}
	e.hooks.OnActionCall(ctx, &domain.ActionEvent{
		EventBase: e.base(domain.EventActionCall),
		StepID:    step.ID,
		Action:    step.Action,
	})
}

func (e *Engine) emitActionReturn(ctx context.Context, step *domain.ExecuteStep, d time.Duration, isError bool) {
	if e.hooks.OnActionReturn == nil {
		return
	}
	e.hooks.OnActionReturn(ctx, &domain.ActionEvent{
		EventBase: e.base(domain.EventActionReturn),
		StepID:    step.ID,
		Action:    step.Action,
		Duration:  d,
		IsError:   isError,
	})
}

func (e *Engine) emitTurnComplete(ctx context.Context, t *turn, r domain.TurnResult) {
	if e.hooks.OnTurnComplete == nil {
		return
	}
	e.hooks.OnTurnComplete(ctx, &domain.TurnEvent{
		EventBase:  e.base(domain.EventTurnComplete),
		Steps:      r.Steps,
		NextStepID: r.NextStepID,
		Complete:   r.Complete,
		Retry:      r.Retry,
		Duration:   time.Since(t.start),
	})
}
