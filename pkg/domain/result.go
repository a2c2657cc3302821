package domain

// ResultKind discriminates StepResult.
type ResultKind string

const (
	ResultMessage        ResultKind = "message"
	ResultChoice         ResultKind = "choice"
	ResultActionComplete ResultKind = "action_complete"
	ResultFailure        ResultKind = "failure"
)

// ChoiceOption is an option as shown to the end user.
type ChoiceOption struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

// StepResult is the outcome of a single step executor.
// Exactly one variant is populated; build it with the constructors below.
type StepResult struct {
	Kind ResultKind

	// message
	Message string

	// message, action_complete
	NextStepID string

	// choice
	Question string
	Options  []ChoiceOption

	// action_complete
	Outcome ActionOutcome

	// failure
	Error string
}

// Success reports whether the result is not a failure.
func (r StepResult) Success() bool {
	return r.Kind != ResultFailure
}

// MessageResult builds a message result.
func MessageResult(message, next string) StepResult {
	return StepResult{Kind: ResultMessage, Message: message, NextStepID: next}
}

// ChoiceResult builds a choice result.
func ChoiceResult(question string, options []ChoiceOption) StepResult {
	return StepResult{Kind: ResultChoice, Question: question, Options: options}
}

// ActionCompleteResult builds an action_complete result.
func ActionCompleteResult(next string, outcome ActionOutcome) StepResult {
	return StepResult{Kind: ResultActionComplete, NextStepID: next, Outcome: outcome}
}

// FailureResult builds a failure result.
func FailureResult(msg string) StepResult {
	return StepResult{Kind: ResultFailure, Error: msg}
}

// TurnResult is what the engine returns for one inbound message.
type TurnResult struct {
	// Response joins every outbound text of the turn with a blank line.
	Response string `json:"response"`

	// Messages holds the same texts one per entry.
	Messages []string `json:"messages,omitempty"`

	// Choices is set when the turn halted at a choice step.
	Choices []ChoiceOption `json:"choices,omitempty"`

	// Action is set when the turn halted at an action the caller must perform.
	Action *ActionSignal `json:"action,omitempty"`

	// NextStepID is the step the caller persists. Empty once complete.
	NextStepID string `json:"nextStepId"`

	Variables map[string]any    `json:"variables"`
	State     ConversationState `json:"state"`

	Complete bool `json:"complete"`

	// Retry is set when the inbound text was not a valid choice.
	Retry bool `json:"retry,omitempty"`

	// Steps lists the step ids executed during the turn.
	Steps []string `json:"steps,omitempty"`
}
