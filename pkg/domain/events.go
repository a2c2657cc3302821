package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter     EventType = "step_enter"
	EventActionCall    EventType = "action_call"
	EventActionReturn  EventType = "action_return"
	EventInvalidChoice EventType = "invalid_choice"
	EventTurnComplete  EventType = "turn_complete"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	FlowID    string    `json:"flow_id,omitempty"`
}

// StepEvent represents entry into a step, or an answer it rejected.
type StepEvent struct {
	EventBase
	StepID   string   `json:"step_id"`
	StepType StepType `json:"step_type"`
	Input    string   `json:"input,omitempty"`
}

// ActionEvent represents an action execution.
type ActionEvent struct {
	EventBase
	StepID   string        `json:"step_id"`
	Action   string        `json:"action"`
	Duration time.Duration `json:"duration,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
}

// TurnEvent summarizes a finished turn.
type TurnEvent struct {
	EventBase
	Steps      []string      `json:"steps"`
	NextStepID string        `json:"next_step_id,omitempty"`
	Complete   bool          `json:"complete"`
	Retry      bool          `json:"retry,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStepEnter     func(context.Context, *StepEvent)
	OnActionCall    func(context.Context, *ActionEvent)
	OnActionReturn  func(context.Context, *ActionEvent)
	OnInvalidChoice func(context.Context, *StepEvent)
	OnTurnComplete  func(context.Context, *TurnEvent)
}
