package dsl

import (
	"fmt"

	"github.com/aretw0/leadflow/pkg/domain"
)

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	id      string
	builder *Builder

	kind    domain.StepType
	text    string
	action  string
	params  map[string]any
	options []domain.Option
	next    string
}

// Text makes the step a message step.
func (s *StepBuilder) Text(content string) *StepBuilder {
	s.kind = domain.StepTypeMessage
	s.text = content
	return s
}

// Question makes the step a choice step with the given prompt.
func (s *StepBuilder) Question(prompt string) *StepBuilder {
	s.kind = domain.StepTypeChoice
	s.text = prompt
	return s
}

// Option adds an answer to a choice step.
func (s *StepBuilder) Option(text, value, next string) *StepBuilder {
	s.options = append(s.options, domain.Option{Text: text, Value: value, Next: next})
	return s
}

// Do makes the step an execute step calling action.
func (s *StepBuilder) Do(action string, params map[string]any) *StepBuilder {
	s.kind = domain.StepTypeExecute
	s.action = action
	if s.params == nil {
		s.params = make(map[string]any, len(params))
	}
	for k, v := range params {
		s.params[k] = v
	}
	return s
}

// Param sets one action param.
func (s *StepBuilder) Param(key string, value any) *StepBuilder {
	if s.params == nil {
		s.params = make(map[string]any)
	}
	s.params[key] = value
	return s
}

// Go sets the next step of a message or execute step.
func (s *StepBuilder) Go(next string) *StepBuilder {
	s.next = next
	return s
}

// Terminal clears the next step so the conversation ends here.
func (s *StepBuilder) Terminal() *StepBuilder {
	s.next = ""
	return s
}

// Add continues with another step of the same flow.
func (s *StepBuilder) Add(id string) *StepBuilder {
	return s.builder.Add(id)
}

// Build builds the whole flow.
func (s *StepBuilder) Build() (*domain.FlowDefinition, error) {
	return s.builder.Build()
}

func (s *StepBuilder) step() (domain.Step, error) {
	switch s.kind {
	case domain.StepTypeMessage:
		return &domain.MessageStep{ID: s.id, Text: s.text, Next: s.next}, nil
	case domain.StepTypeChoice:
		if s.next != "" {
			return nil, fmt.Errorf("step %s: choice steps route through options, not Go", s.id)
		}
		return &domain.ChoiceStep{ID: s.id, Prompt: s.text, Options: s.options}, nil
	case domain.StepTypeExecute:
		params := s.params
		if params == nil {
			params = map[string]any{}
		}
		return &domain.ExecuteStep{ID: s.id, Action: s.action, Params: params, Next: s.next}, nil
	}
	return nil, fmt.Errorf("step %s: no type set (use Text, Question or Do)", s.id)
}
