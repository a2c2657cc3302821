package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/leadflow/pkg/adapters/memory"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore(), memory.NewLoader(nil))
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("conversation-%d", i)
		_ = mgr.WithLock(ctx, id, func(ctx context.Context) error {
			return mgr.store.Save(ctx, domain.NewConversation(id, "f", mgr.clock()))
		})
		_ = mgr.Reset(ctx, id)
	}

	assert.Zero(t, mgr.activeLocks(), "lock entries must be released after use")
}
