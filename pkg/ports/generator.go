package ports

import (
	"context"

	"github.com/aretw0/leadflow/pkg/domain"
)

// GenerationRequest is the input for an AI-assisted reply.
type GenerationRequest struct {
	// Vertical selects the business rules and fallback text (saude, imoveis, ...).
	Vertical string

	// Message is the latest inbound text, when known.
	Message string

	// History holds previous exchanges, oldest first.
	History []string

	Context domain.ConversationContext

	// MaxChars caps the reply length. Zero means the generator default.
	MaxChars int
}

// Generator produces replies for the lead.
type Generator interface {
	// Generate returns a reply or an error. Callers fall back on error.
	Generate(ctx context.Context, req GenerationRequest) (string, error)

	// Fallback returns the canned reply for a vertical.
	Fallback(vertical string) string
}
