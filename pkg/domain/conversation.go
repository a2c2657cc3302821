package domain

import "time"

// ConversationStatus tracks whether a conversation still expects input.
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationCompleted ConversationStatus = "completed"
)

// Conversation is the persisted record around a ConversationState.
type Conversation struct {
	ID          string             `json:"id"`
	FlowID      string             `json:"flowId"`
	State       ConversationState  `json:"state"`
	Status      ConversationStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
}

// NewConversation creates an active conversation that has not started yet.
func NewConversation(id, flowID string, now time.Time) *Conversation {
	return &Conversation{
		ID:     id,
		FlowID: flowID,
		State: ConversationState{
			Variables: make(map[string]any),
			Responses: make(map[string]any),
		},
		Status:    ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
