package domain

import "time"

// HistoryEntry is one audit record of a conversation's path through the graph.
// Transition markers carry no Response; answer markers do.
type HistoryEntry struct {
	StepID    string    `json:"stepId"`
	Timestamp time.Time `json:"timestamp"`
	Response  any       `json:"response,omitempty"`
}

// ConversationState represents the progress of one conversation.
// It is treated as a value: State Manager operations return a new one.
type ConversationState struct {
	// CurrentStepID is empty before the conversation starts.
	CurrentStepID string `json:"currentStepId"`

	// Variables holds accumulated answers and action outputs.
	Variables map[string]any `json:"variables"`

	// Responses holds the raw answer given at each step.
	Responses map[string]any `json:"responses"`

	// History is append-only.
	History []HistoryEntry `json:"history"`
}

// Started reports whether the conversation has a current step.
func (s ConversationState) Started() bool {
	return s.CurrentStepID != ""
}

// Clone returns a copy that shares no maps or slices with s.
// Values stored inside the maps are copied shallowly.
func (s ConversationState) Clone() ConversationState {
	out := ConversationState{
		CurrentStepID: s.CurrentStepID,
		Variables:     make(map[string]any, len(s.Variables)),
		Responses:     make(map[string]any, len(s.Responses)),
		History:       make([]HistoryEntry, len(s.History)),
	}
	for k, v := range s.Variables {
		out.Variables[k] = v
	}
	for k, v := range s.Responses {
		out.Responses[k] = v
	}
	copy(out.History, s.History)
	return out
}

// ConversationContext is the summary handed to actions and the AI collaborator.
type ConversationContext struct {
	Variables map[string]any `json:"variables"`
	Responses map[string]any `json:"responses"`
	StepCount int            `json:"stepCount"`
	LastStep  string         `json:"lastStep,omitempty"`
}
