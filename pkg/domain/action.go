package domain

// ActionRequest is handed to an action handler when an execute step runs.
type ActionRequest struct {
	Name   string
	StepID string

	// Params are the execute step params, already interpolated.
	Params map[string]any

	Context ConversationContext
}

// ActionOutcome is what an action handler produced.
type ActionOutcome struct {
	// Message is relayed to the end user when not empty.
	Message string `json:"message,omitempty"`

	// Variables are merged into the conversation state.
	Variables map[string]any `json:"variables,omitempty"`
}

// ActionSignal asks the caller to perform an action the engine has no handler for.
type ActionSignal struct {
	Name   string         `json:"name"`
	StepID string         `json:"stepId"`
	Params map[string]any `json:"params,omitempty"`
}
