package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStepNotFound is returned when a step id does not resolve while running a flow.
var ErrStepNotFound = errors.New("step not found")

// ErrChainLimit is returned when a turn chains more non-interactive steps than the flow has.
var ErrChainLimit = errors.New("auto-chain limit exceeded")

// ErrUnknownStepType is returned by exhaustive step switches on an unexpected kind.
var ErrUnknownStepType = errors.New("unknown step type")

// ErrUnknownAction is returned when no handler is registered for an action name.
var ErrUnknownAction = errors.New("unknown action")

// ErrConversationNotFound is returned when a conversation ID cannot be found in the store.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrFlowNotFound is returned when a flow ID cannot be found by the loader.
var ErrFlowNotFound = errors.New("flow not found")

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue is one finding about a flow definition.
type ValidationIssue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	StepID   string   `json:"stepId,omitempty"`
	Message  string   `json:"message"`
}

func (i ValidationIssue) String() string {
	if i.StepID == "" {
		return fmt.Sprintf("%s: %s", i.Code, i.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", i.Code, i.StepID, i.Message)
}

// FlowValidationError rejects a malformed flow definition.
type FlowValidationError struct {
	Issues []ValidationIssue
}

func (e *FlowValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid flow: " + e.Issues[0].String()
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("invalid flow: %d errors: %s", len(e.Issues), strings.Join(parts, "; "))
}

// StepIDs returns the distinct offending step ids in order of appearance.
func (e *FlowValidationError) StepIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, issue := range e.Issues {
		if issue.StepID == "" || seen[issue.StepID] {
			continue
		}
		seen[issue.StepID] = true
		ids = append(ids, issue.StepID)
	}
	return ids
}
