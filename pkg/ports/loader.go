package ports

import (
	"context"

	"github.com/aretw0/leadflow/pkg/domain"
)

// FlowLoader defines how flow definitions are retrieved.
// Implementations return flows already parsed; validation is the engine's job.
type FlowLoader interface {
	// GetFlow returns the flow registered under id.
	// Returns domain.ErrFlowNotFound if there is none.
	GetFlow(ctx context.Context, id string) (*domain.FlowDefinition, error)

	// ListFlows returns the ids of every available flow, sorted.
	ListFlows(ctx context.Context) ([]string, error)
}
