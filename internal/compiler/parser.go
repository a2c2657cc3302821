// Package compiler turns raw flow documents (JSON or YAML) into domain.FlowDefinition.
//
// Both the English keys (version/start/steps, type message|choice|execute) and the
// legacy Portuguese keys (versao/inicio/passos, tipo mensagem|escolha|executar) are accepted.
package compiler

import (
	"bytes"
	"fmt"
	"os"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// wireFlow is the decoded shape of a flow document after key normalization.
type wireFlow struct {
	ID      string     `json:"id,omitempty" mapstructure:"id"`
	Version string     `json:"version" mapstructure:"version"`
	Start   string     `json:"start" mapstructure:"start"`
	Steps   []wireStep `json:"steps" mapstructure:"steps"`
}

type wireStep struct {
	ID      string         `json:"id" mapstructure:"id"`
	Type    string         `json:"type" mapstructure:"type"`
	Text    string         `json:"text,omitempty" mapstructure:"text"`
	Prompt  string         `json:"prompt,omitempty" mapstructure:"prompt"`
	Options []wireOption   `json:"options,omitempty" mapstructure:"options"`
	Action  string         `json:"action,omitempty" mapstructure:"action"`
	Params  map[string]any `json:"params,omitempty" mapstructure:"params"`
	Next    *string        `json:"next" mapstructure:"next"`
}

type wireOption struct {
	Text  string `json:"text" mapstructure:"text"`
	Value string `json:"value" mapstructure:"value"`
	Next  string `json:"next" mapstructure:"next"`
}

// Parser converts raw bytes into a FlowDefinition.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes a JSON or YAML flow document.
// Structural problems are reported together as a *schema.AggregateError.
// Graph-level checks are left to the validator.
func (p *Parser) Parse(data []byte) (*domain.FlowDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("failed to parse flow: empty document")
	}

	// YAML is a superset of JSON, so one decoder serves both formats.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse flow: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("failed to parse flow: document is not an object")
	}

	normalized, errs := normalizeFlow(raw)

	var wire wireFlow
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &wire,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(normalized); err != nil {
		errs = append(errs, &schema.ValidationError{Key: "flow", Reason: err.Error()})
	}

	flow, buildErrs := build(wire)
	errs = append(errs, buildErrs...)
	if len(errs) > 0 {
		return nil, &schema.AggregateError{Errors: errs}
	}
	return flow, nil
}

// ParseFile reads and parses a flow document from disk.
func (p *Parser) ParseFile(path string) (*domain.FlowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow %s: %w", path, err)
	}
	flow, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return flow, nil
}

func build(w wireFlow) (*domain.FlowDefinition, []error) {
	var errs []error
	flow := &domain.FlowDefinition{
		ID:      w.ID,
		Version: w.Version,
		Start:   w.Start,
		Steps:   make([]domain.Step, 0, len(w.Steps)),
	}

	for i, ws := range w.Steps {
		next := ""
		if ws.Next != nil {
			next = *ws.Next
		}

		switch domain.StepType(ws.Type) {
		case domain.StepTypeMessage:
			flow.Steps = append(flow.Steps, &domain.MessageStep{ID: ws.ID, Text: ws.Text, Next: next})
		case domain.StepTypeChoice:
			opts := make([]domain.Option, len(ws.Options))
			for j, o := range ws.Options {
				opts[j] = domain.Option{Text: o.Text, Value: o.Value, Next: o.Next}
			}
			flow.Steps = append(flow.Steps, &domain.ChoiceStep{ID: ws.ID, Prompt: ws.Prompt, Options: opts})
		case domain.StepTypeExecute:
			params := ws.Params
			if params == nil {
				params = make(map[string]any)
			}
			flow.Steps = append(flow.Steps, &domain.ExecuteStep{ID: ws.ID, Action: ws.Action, Params: params, Next: next})
		case "":
			errs = append(errs, &schema.ValidationError{Key: fmt.Sprintf("steps[%d].type", i), Reason: "required"})
		default:
			errs = append(errs, &schema.ValidationError{
				Key:    fmt.Sprintf("steps[%d].type", i),
				Reason: fmt.Sprintf("%v: %q", domain.ErrUnknownStepType, ws.Type),
				Value:  ws.Type,
			})
		}
	}
	return flow, errs
}
