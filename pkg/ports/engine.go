package ports

import (
	"context"

	"github.com/aretw0/leadflow/pkg/domain"
)

// TurnEngine runs conversation turns for a single flow without keeping state.
// This is the interface used by the session manager and adapters (HTTP, MCP).
type TurnEngine interface {
	// ProcessTurn consumes one inbound message and returns the next state.
	ProcessTurn(ctx context.Context, state domain.ConversationState, text string) (domain.TurnResult, error)

	// Resume continues a turn that halted on an action the caller performed.
	Resume(ctx context.Context, state domain.ConversationState, outcome domain.ActionOutcome) (domain.TurnResult, error)

	// Flow returns the definition being run.
	Flow() *domain.FlowDefinition
}
