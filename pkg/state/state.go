// Package state implements the State Manager: pure transformations over
// domain.ConversationState. Every operation returns a new value and never
// mutates the maps or slices of its input.
package state

import (
	"time"

	"github.com/aretw0/leadflow/pkg/domain"
)

// Manager applies state transitions, stamping history entries with Clock.
// The zero value is ready to use and stamps with time.Now.
type Manager struct {
	Clock func() time.Time
}

var defaultManager = Manager{}

func (m Manager) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

// Initialize returns a fresh state positioned at startStepID.
func Initialize(startStepID string) domain.ConversationState {
	return domain.ConversationState{
		CurrentStepID: startStepID,
		Variables:     make(map[string]any),
		Responses:     make(map[string]any),
		History:       []domain.HistoryEntry{},
	}
}

// SetVariable returns s with key set to value. History is untouched.
func SetVariable(s domain.ConversationState, key string, value any) domain.ConversationState {
	next := s.Clone()
	next.Variables[key] = value
	return next
}

// SetVariables returns s with vars merged over its variables. History is untouched.
func SetVariables(s domain.ConversationState, vars map[string]any) domain.ConversationState {
	next := s.Clone()
	for k, v := range vars {
		next.Variables[k] = v
	}
	return next
}

// RecordResponse stores the answer given at stepID and appends an answer marker.
func (m Manager) RecordResponse(s domain.ConversationState, stepID string, response any) domain.ConversationState {
	next := s.Clone()
	next.Responses[stepID] = response
	next.History = append(next.History, domain.HistoryEntry{
		StepID:    stepID,
		Timestamp: m.now(),
		Response:  response,
	})
	return next
}

// MoveToStep points s at nextStepID and appends a transition marker.
func (m Manager) MoveToStep(s domain.ConversationState, nextStepID string) domain.ConversationState {
	next := s.Clone()
	next.CurrentStepID = nextStepID
	next.History = append(next.History, domain.HistoryEntry{
		StepID:    nextStepID,
		Timestamp: m.now(),
	})
	return next
}

// RecordResponse uses the default wall clock.
func RecordResponse(s domain.ConversationState, stepID string, response any) domain.ConversationState {
	return defaultManager.RecordResponse(s, stepID, response)
}

// MoveToStep uses the default wall clock.
func MoveToStep(s domain.ConversationState, nextStepID string) domain.ConversationState {
	return defaultManager.MoveToStep(s, nextStepID)
}

// Context summarizes s for actions and prompt building.
func Context(s domain.ConversationState) domain.ConversationContext {
	c := s.Clone()
	ctx := domain.ConversationContext{
		Variables: c.Variables,
		Responses: c.Responses,
		StepCount: len(c.History),
	}
	if n := len(c.History); n > 0 {
		ctx.LastStep = c.History[n-1].StepID
	}
	return ctx
}

// IsComplete reports whether there is no step after the current one.
func IsComplete(nextStepID string) bool {
	return nextStepID == ""
}
