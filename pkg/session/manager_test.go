package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/leadflow/internal/testutils"
	"github.com/aretw0/leadflow/pkg/adapters/memory"
	"github.com/aretw0/leadflow/pkg/adapters/redis"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore simulates latency to provoke race conditions if locking is missing.
type slowStore struct {
	*memory.Store
	saves int
	mu    sync.Mutex
}

func (s *slowStore) Save(ctx context.Context, conv *domain.Conversation) error {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.Store.Save(ctx, conv)
}

func newManager(t *testing.T, opts ...session.Option) (*session.Manager, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	loader := memory.NewLoader(map[string]*domain.FlowDefinition{
		"greeting": testutils.Greeting(),
		"auto":     testutils.AutoChain("enviar_crm"),
	})
	return session.NewManager(store, loader, opts...), store
}

func TestManager_HandleMessage(t *testing.T) {
	fixed := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	mgr, store := newManager(t, session.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	res, err := mgr.HandleMessage(ctx, "5511999990000", "greeting", "oi")
	require.NoError(t, err)
	assert.Equal(t, "pergunta", res.NextStepID)

	conv, err := store.Load(ctx, "5511999990000")
	require.NoError(t, err)
	assert.Equal(t, "greeting", conv.FlowID)
	assert.Equal(t, domain.ConversationActive, conv.Status)
	assert.Equal(t, "pergunta", conv.State.CurrentStepID)
	assert.Equal(t, fixed, conv.CreatedAt)

	res, err = mgr.HandleMessage(ctx, "5511999990000", "", "a")
	require.NoError(t, err)
	assert.True(t, res.Complete)

	conv, err = mgr.Get(ctx, "5511999990000")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationCompleted, conv.Status)
	require.NotNil(t, conv.CompletedAt)
	assert.Equal(t, "a", conv.State.Variables["pergunta"])

	// A completed conversation restarts on the next message.
	res, err = mgr.HandleMessage(ctx, "5511999990000", "", "oi de novo")
	require.NoError(t, err)
	assert.Equal(t, "pergunta", res.NextStepID)

	conv, err = mgr.Get(ctx, "5511999990000")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationActive, conv.Status)
	assert.Nil(t, conv.CompletedAt)
}

func TestManager_DefaultFlow(t *testing.T) {
	mgr, _ := newManager(t)
	_, err := mgr.HandleMessage(context.Background(), "c1", "", "oi")
	assert.ErrorIs(t, err, session.ErrNoFlow)

	mgr, _ = newManager(t, session.WithDefaultFlow("greeting"))
	res, err := mgr.HandleMessage(context.Background(), "c1", "", "oi")
	require.NoError(t, err)
	assert.Equal(t, "pergunta", res.NextStepID)
}

func TestManager_UnknownFlow(t *testing.T) {
	mgr, _ := newManager(t)
	_, err := mgr.HandleMessage(context.Background(), "c1", "inexistente", "oi")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestManager_SwitchFlowRestarts(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.HandleMessage(ctx, "c1", "greeting", "oi")
	require.NoError(t, err)

	res, err := mgr.HandleMessage(ctx, "c1", "auto", "oi")
	require.NoError(t, err)
	require.NotNil(t, res.Action)
	assert.Equal(t, "enviar_crm", res.Action.Name)

	conv, err := mgr.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "auto", conv.FlowID)
}

func TestManager_Resume(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	res, err := mgr.HandleMessage(ctx, "c1", "auto", "oi")
	require.NoError(t, err)
	require.NotNil(t, res.Action)

	res, err = mgr.Resume(ctx, "c1", domain.ActionOutcome{Message: "Enviado.", Variables: map[string]any{"crm_id": "x9"}})
	require.NoError(t, err)
	assert.Equal(t, "Enviado.\n\nContinuar?", res.Response)

	conv, err := mgr.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "x9", conv.State.Variables["crm_id"])

	_, err = mgr.Resume(ctx, "missing", domain.ActionOutcome{})
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestManager_ResetAndList(t *testing.T) {
	mgr, _ := newManager(t, session.WithDefaultFlow("greeting"))
	ctx := context.Background()

	for _, id := range []string{"b", "a"} {
		_, err := mgr.HandleMessage(ctx, id, "", "oi")
		require.NoError(t, err)
	}
	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, mgr.Reset(ctx, "a"))
	_, err = mgr.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	flows, err := mgr.Flows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"auto", "greeting"}, flows)
}

func TestManager_EngineIsCached(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	first, err := mgr.Engine(ctx, "greeting")
	require.NoError(t, err)
	second, err := mgr.Engine(ctx, "greeting")
	require.NoError(t, err)
	assert.Same(t, first, second)

	mgr.Invalidate("greeting")
	third, err := mgr.Engine(ctx, "greeting")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, "greeting", third.Flow().ID)
}

// sharedLoader hands every caller the same definition, without an id.
type sharedLoader struct {
	flow *domain.FlowDefinition
}

func (l sharedLoader) GetFlow(ctx context.Context, id string) (*domain.FlowDefinition, error) {
	return l.flow, nil
}

func (l sharedLoader) ListFlows(ctx context.Context) ([]string, error) {
	return []string{"greeting"}, nil
}

func TestManager_EngineDoesNotMutateLoaderFlow(t *testing.T) {
	shared := testutils.Greeting()
	require.Empty(t, shared.ID)
	loader := sharedLoader{flow: shared}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr := session.NewManager(memory.NewStore(), loader)
			engine, err := mgr.Engine(ctx, "greeting")
			assert.NoError(t, err)
			assert.Equal(t, "greeting", engine.Flow().ID)
		}()
	}
	wg.Wait()

	assert.Empty(t, shared.ID, "the loader's definition must stay untouched")
}

func TestManager_InvalidFlowIsRejected(t *testing.T) {
	loader := memory.NewLoader(map[string]*domain.FlowDefinition{"bad": testutils.Circular()})
	mgr := session.NewManager(memory.NewStore(), loader)

	_, err := mgr.HandleMessage(context.Background(), "c1", "bad", "oi")
	var fve *domain.FlowValidationError
	assert.True(t, errors.As(err, &fve))
}

func TestManager_SerializesTurns(t *testing.T) {
	store := &slowStore{Store: memory.NewStore()}
	loader := memory.NewLoader(map[string]*domain.FlowDefinition{"greeting": testutils.Greeting()})
	mgr := session.NewManager(store, loader)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.HandleMessage(ctx, "race", "greeting", "talvez")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, store.saves)
	conv, err := mgr.Get(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, "pergunta", conv.State.CurrentStepID)
	assert.Empty(t, conv.State.Responses)
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mgr, _ := newManager(t,
		session.WithLocker(redis.NewLocker(client, "test:")),
		session.WithLockTTL(time.Second),
	)
	ctx := context.Background()

	_, err := mgr.HandleMessage(ctx, "c1", "greeting", "oi")
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:lock:c1"), "lock must be released after the turn")

	require.NoError(t, mr.Set("test:lock:c2", "other-owner"))
	cctx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = mgr.HandleMessage(cctx, "c2", "greeting", "oi")
	assert.Error(t, err)
}
