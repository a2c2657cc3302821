package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConversationStoreContract verifies that a ConversationStore implementation
// adheres to the interface contract. Adapters call it from their own tests.
func RunConversationStoreContract(t *testing.T, store ConversationStore) {
	ctx := context.Background()
	convID := "contract-conv-" + time.Now().Format("20060102150405.000")
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		conv := domain.NewConversation(convID, "saude", now)
		conv.State.CurrentStepID = "perfil"
		conv.State.Variables["perfil"] = "casal"
		conv.State.Variables["score"] = 42
		conv.State.Responses["perfil"] = "casal"
		conv.State.History = append(conv.State.History, domain.HistoryEntry{StepID: "perfil", Timestamp: now, Response: "casal"})

		require.NoError(t, store.Save(ctx, conv), "Save should not return error")

		loaded, err := store.Load(ctx, convID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, convID, loaded.ID)
		assert.Equal(t, "saude", loaded.FlowID)
		assert.Equal(t, domain.ConversationActive, loaded.Status)
		assert.Equal(t, "perfil", loaded.State.CurrentStepID)
		assert.Equal(t, "casal", loaded.State.Variables["perfil"])
		assert.Equal(t, "casal", loaded.State.Responses["perfil"])
		// Serializing stores may turn numbers into float64.
		assert.EqualValues(t, 42, toFloat(loaded.State.Variables["score"]))
		require.Len(t, loaded.State.History, 1)
		assert.True(t, now.Equal(loaded.State.History[0].Timestamp))
		assert.True(t, now.Equal(loaded.CreatedAt))
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, convID)
		require.NoError(t, err)
		loaded.State.Variables["perfil"] = "mutated"

		again, err := store.Load(ctx, convID)
		require.NoError(t, err)
		assert.Equal(t, "casal", again.State.Variables["perfil"])
	})

	t.Run("Save overwrites", func(t *testing.T) {
		conv, err := store.Load(ctx, convID)
		require.NoError(t, err)
		done := now.Add(time.Minute)
		conv.Status = domain.ConversationCompleted
		conv.CompletedAt = &done
		require.NoError(t, store.Save(ctx, conv))

		loaded, err := store.Load(ctx, convID)
		require.NoError(t, err)
		assert.Equal(t, domain.ConversationCompleted, loaded.Status)
		require.NotNil(t, loaded.CompletedAt)
		assert.True(t, done.Equal(*loaded.CompletedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+convID)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, convID), "Delete should not return error")

		_, err := store.Load(ctx, convID)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound, "Load after Delete should return ErrConversationNotFound")

		assert.NoError(t, store.Delete(ctx, convID), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		id1 := convID + "-1"
		id2 := convID + "-2"
		require.NoError(t, store.Save(ctx, domain.NewConversation(id1, "saude", now)))
		require.NoError(t, store.Save(ctx, domain.NewConversation(id2, "saude", now)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunFlowLoaderContract verifies a FlowLoader that was seeded with want.
func RunFlowLoaderContract(t *testing.T, loader FlowLoader, want map[string]*domain.FlowDefinition) {
	ctx := context.Background()

	t.Run("GetFlow", func(t *testing.T) {
		for id, expected := range want {
			flow, err := loader.GetFlow(ctx, id)
			require.NoError(t, err, "GetFlow(%s)", id)
			assert.Equal(t, expected.Start, flow.Start)
			assert.Len(t, flow.Steps, len(expected.Steps))
		}
	})

	t.Run("GetFlow Non-Existent", func(t *testing.T) {
		_, err := loader.GetFlow(ctx, "non-existent-flow")
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	})

	t.Run("ListFlows", func(t *testing.T) {
		ids, err := loader.ListFlows(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, len(want))
		for id := range want {
			assert.Contains(t, ids, id)
		}
		assert.IsNonDecreasing(t, ids)
	})
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
