package runtime

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/registry"
	"github.com/aretw0/leadflow/pkg/state"
)

// DefaultActionTimeout bounds a single action handler call.
const DefaultActionTimeout = 15 * time.Second

// ErrInvalidChoice is matched by *InvalidChoiceError.
var ErrInvalidChoice = errors.New("invalid choice")

// InvalidChoiceError rejects an answer that matches no option of a choice step.
type InvalidChoiceError struct {
	StepID  string
	Answer  string
	Options []string
}

func (e *InvalidChoiceError) Error() string {
	return fmt.Sprintf("Invalid choice: %s. Available options: %s", e.Answer, strings.Join(e.Options, ", "))
}

func (e *InvalidChoiceError) Is(target error) bool {
	return target == ErrInvalidChoice
}

// Actions resolves action names to their definitions. *registry.Registry satisfies it.
type Actions interface {
	Lookup(name string) (registry.Definition, bool)
}

// Executor runs individual steps. The zero value is ready to use:
// it stamps history with the wall clock, knows no actions and applies DefaultActionTimeout.
type Executor struct {
	States  state.Manager
	Actions Actions
	Timeout time.Duration
}

var defaultExecutor = Executor{}

// Message renders the step text against s.
func (x Executor) Message(step *domain.MessageStep, s domain.ConversationState) domain.StepResult {
	return domain.MessageResult(state.ReplaceVariables(step.Text, s), step.Next)
}

// Choice renders the prompt and the option labels against s.
func (x Executor) Choice(step *domain.ChoiceStep, s domain.ConversationState) domain.StepResult {
	options := make([]domain.ChoiceOption, len(step.Options))
	for i, opt := range step.Options {
		options[i] = domain.ChoiceOption{
			Text:  state.ReplaceVariables(opt.Text, s),
			Value: opt.Value,
		}
	}
	return domain.ChoiceResult(state.ReplaceVariables(step.Prompt, s), options)
}

// ChoiceResponse accepts answer when it equals an option value exactly.
// The answer is recorded as a response, stored under the step id (and the
// option label under <id>_text) and the state moves to the option's next step.
// On mismatch s is left untouched and an *InvalidChoiceError is returned.
func (x Executor) ChoiceResponse(step *domain.ChoiceStep, s domain.ConversationState, answer string) (string, domain.ConversationState, error) {
	opt, ok := step.Option(answer)
	if !ok {
		return "", s, &InvalidChoiceError{StepID: step.ID, Answer: answer, Options: step.Values()}
	}

	next := x.States.RecordResponse(s, step.ID, opt.Value)
	next = state.SetVariables(next, map[string]any{
		step.ID:           opt.Value,
		step.ID + "_text": opt.Text,
	})
	next = x.States.MoveToStep(next, opt.Next)
	return opt.Next, next, nil
}

// Action runs the step's handler and always reports action_complete once a
// handler exists: failures, panics and timeouts degrade to the handler's
// fallback outcome (or an empty one) so the flow keeps moving.
// A missing handler is the only failure result.
func (x Executor) Action(ctx context.Context, step *domain.ExecuteStep, s domain.ConversationState) domain.StepResult {
	def, ok := x.lookup(step.Action)
	if !ok {
		return domain.FailureResult("Unknown action: " + step.Action)
	}
	outcome, _ := x.perform(ctx, def, x.request(step, s))
	return domain.ActionCompleteResult(step.Next, outcome)
}

func (x Executor) lookup(name string) (registry.Definition, bool) {
	if x.Actions == nil {
		return registry.Definition{}, false
	}
	def, ok := x.Actions.Lookup(name)
	if !ok || def.Handler == nil {
		return registry.Definition{}, false
	}
	return def, true
}

func (x Executor) request(step *domain.ExecuteStep, s domain.ConversationState) domain.ActionRequest {
	params, _ := interpolateValue(step.Params, s).(map[string]any)
	if params == nil {
		params = make(map[string]any)
	}
	return domain.ActionRequest{
		Name:    step.Action,
		StepID:  step.ID,
		Params:  params,
		Context: state.Context(s),
	}
}

type performResult struct {
	outcome domain.ActionOutcome
	err     error
}

// perform calls the handler under a timeout. The returned error is only
// informational: the outcome is already degraded when it is non-nil.
func (x Executor) perform(ctx context.Context, def registry.Definition, req domain.ActionRequest) (domain.ActionOutcome, error) {
	timeout := x.Timeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan performResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- performResult{err: fmt.Errorf("action %s panicked: %v", req.Name, r)}
			}
		}()
		outcome, err := def.Handler.Perform(ctx, req)
		done <- performResult{outcome: outcome, err: err}
	}()

	var res performResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = performResult{err: fmt.Errorf("action %s: %w", req.Name, ctx.Err())}
	}

	if res.err == nil {
		return res.outcome, nil
	}
	if res.outcome.Message != "" || len(res.outcome.Variables) > 0 {
		return res.outcome, res.err
	}
	if fb, ok := def.Handler.(registry.Fallbacker); ok {
		return fb.Fallback(req), res.err
	}
	return domain.ActionOutcome{}, res.err
}

// interpolateValue replaces placeholders inside every string of v. Typed maps
// and slices (e.g. from flows built in Go) come back as map[string]any and []any.
func interpolateValue(v any, s domain.ConversationState) any {
	switch val := v.(type) {
	case string:
		return state.ReplaceVariables(val, s)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = interpolateValue(item, s)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = interpolateValue(item, s)
		}
		return out
	case nil:
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = interpolateValue(iter.Value().Interface(), s)
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = interpolateValue(rv.Index(i).Interface(), s)
		}
		return out
	}
	return v
}

// ExecuteMessageStep renders a message step with the default executor.
func ExecuteMessageStep(step *domain.MessageStep, s domain.ConversationState) domain.StepResult {
	return defaultExecutor.Message(step, s)
}

// ExecuteChoiceStep renders a choice step with the default executor.
func ExecuteChoiceStep(step *domain.ChoiceStep, s domain.ConversationState) domain.StepResult {
	return defaultExecutor.Choice(step, s)
}

// ProcessChoiceResponse applies an answer with the default executor.
func ProcessChoiceResponse(step *domain.ChoiceStep, s domain.ConversationState, answer string) (string, domain.ConversationState, error) {
	return defaultExecutor.ChoiceResponse(step, s, answer)
}

// ExecuteActionStep runs an execute step against actions with the default timeout.
func ExecuteActionStep(ctx context.Context, actions Actions, step *domain.ExecuteStep, s domain.ConversationState) domain.StepResult {
	return Executor{Actions: actions}.Action(ctx, step, s)
}
