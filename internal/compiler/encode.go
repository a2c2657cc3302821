package compiler

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/leadflow/pkg/domain"
)

// Marshal renders a flow as canonical JSON with English keys.
// Terminal links are written as null.
func Marshal(flow *domain.FlowDefinition) ([]byte, error) {
	w := wireFlow{
		ID:      flow.ID,
		Version: flow.Version,
		Start:   flow.Start,
		Steps:   make([]wireStep, 0, len(flow.Steps)),
	}

	for _, s := range flow.Steps {
		switch st := s.(type) {
		case *domain.MessageStep:
			w.Steps = append(w.Steps, wireStep{ID: st.ID, Type: string(st.Type()), Text: st.Text, Next: nullable(st.Next)})
		case *domain.ChoiceStep:
			opts := make([]wireOption, len(st.Options))
			for i, o := range st.Options {
				opts[i] = wireOption{Text: o.Text, Value: o.Value, Next: o.Next}
			}
			w.Steps = append(w.Steps, wireStep{ID: st.ID, Type: string(st.Type()), Prompt: st.Prompt, Options: opts})
		case *domain.ExecuteStep:
			w.Steps = append(w.Steps, wireStep{ID: st.ID, Type: string(st.Type()), Action: st.Action, Params: st.Params, Next: nullable(st.Next)})
		default:
			return nil, fmt.Errorf("%w: %T", domain.ErrUnknownStepType, s)
		}
	}

	return json.MarshalIndent(w, "", "  ")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
