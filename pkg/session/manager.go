package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/leadflow/internal/logging"
	"github.com/aretw0/leadflow/internal/runtime"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// ErrNoFlow is returned when a new conversation names no flow and the manager has no default.
var ErrNoFlow = errors.New("no flow specified")

// EngineFactory compiles a validated flow into a turn engine.
type EngineFactory func(flow *domain.FlowDefinition) (ports.TurnEngine, error)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates conversation turns, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store   ports.ConversationStore
	loader  ports.FlowLoader
	factory EngineFactory

	mu    sync.Mutex
	locks map[string]*lockEntry

	enginesMu sync.RWMutex
	engines   map[string]ports.TurnEngine

	locker      ports.DistributedLocker
	lockTTL     time.Duration
	defaultFlow string
	clock       func() time.Time
	logger      *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithEngineFactory replaces the default runtime engine construction.
func WithEngineFactory(f EngineFactory) Option {
	return func(m *Manager) {
		m.factory = f
	}
}

// WithDefaultFlow names the flow used by conversations created without one.
func WithDefaultFlow(flowID string) Option {
	return func(m *Manager) {
		m.defaultFlow = flowID
	}
}

// WithClock overrides time.Now for conversation timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// NewManager creates a Manager persisting to store and reading flows from loader.
func NewManager(store ports.ConversationStore, loader ports.FlowLoader, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		loader:  loader,
		locks:   make(map[string]*lockEntry),
		engines: make(map[string]ports.TurnEngine),
		lockTTL: DefaultLockTTL,
		clock:   time.Now,
		logger:  logging.NewNop(),
	}
	m.factory = func(flow *domain.FlowDefinition) (ports.TurnEngine, error) {
		return runtime.NewEngine(flow, runtime.WithLogger(m.logger))
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HandleMessage runs one turn of conversationID. A missing conversation is
// created on flowID (or the default flow). Naming a different flow than the
// stored one restarts the conversation on the new flow. text passes through
// SanitizeInput first.
func (m *Manager) HandleMessage(ctx context.Context, conversationID, flowID, text string) (domain.TurnResult, error) {
	var res domain.TurnResult
	text, err := SanitizeInput(text)
	if err != nil {
		return res, err
	}
	err = m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		conv, err := m.loadOrCreate(ctx, conversationID, flowID)
		if err != nil {
			return err
		}
		engine, err := m.Engine(ctx, conv.FlowID)
		if err != nil {
			return err
		}

		res, err = engine.ProcessTurn(ctx, conv.State, text)
		if err != nil {
			return fmt.Errorf("conversation %s: %w", conversationID, err)
		}
		return m.save(ctx, conv, res)
	})
	return res, err
}

// Resume continues a conversation whose last turn halted on an action signal.
func (m *Manager) Resume(ctx context.Context, conversationID string, outcome domain.ActionOutcome) (domain.TurnResult, error) {
	var res domain.TurnResult
	err := m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		conv, err := m.store.Load(ctx, conversationID)
		if err != nil {
			return err
		}
		engine, err := m.Engine(ctx, conv.FlowID)
		if err != nil {
			return err
		}

		res, err = engine.Resume(ctx, conv.State, outcome)
		if err != nil {
			return fmt.Errorf("conversation %s: %w", conversationID, err)
		}
		return m.save(ctx, conv, res)
	})
	return res, err
}

func (m *Manager) loadOrCreate(ctx context.Context, id, flowID string) (*domain.Conversation, error) {
	conv, err := m.store.Load(ctx, id)
	switch {
	case err == nil:
		if flowID != "" && flowID != conv.FlowID {
			m.logger.Info("Conversation switched flow", "conversation_id", id, "from", conv.FlowID, "to", flowID)
			return domain.NewConversation(id, flowID, m.clock()), nil
		}
		return conv, nil
	case errors.Is(err, domain.ErrConversationNotFound):
		if flowID == "" {
			flowID = m.defaultFlow
		}
		if flowID == "" {
			return nil, ErrNoFlow
		}
		return domain.NewConversation(id, flowID, m.clock()), nil
	default:
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
}

func (m *Manager) save(ctx context.Context, conv *domain.Conversation, res domain.TurnResult) error {
	now := m.clock()
	conv.State = res.State
	conv.UpdatedAt = now
	if res.Complete {
		conv.Status = domain.ConversationCompleted
		conv.CompletedAt = &now
	} else {
		conv.Status = domain.ConversationActive
		conv.CompletedAt = nil
	}
	if err := m.store.Save(ctx, conv); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// Engine returns the cached engine for flowID, loading and compiling the flow on first use.
func (m *Manager) Engine(ctx context.Context, flowID string) (ports.TurnEngine, error) {
	m.enginesMu.RLock()
	engine, ok := m.engines[flowID]
	m.enginesMu.RUnlock()
	if ok {
		return engine, nil
	}

	flow, err := m.loader.GetFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if flow.ID == "" {
		// Loaders may hand out shared definitions; stamp a copy.
		stamped := *flow
		stamped.ID = flowID
		flow = &stamped
	}
	engine, err = m.factory(flow)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", flowID, err)
	}

	m.enginesMu.Lock()
	defer m.enginesMu.Unlock()
	if cached, ok := m.engines[flowID]; ok {
		return cached, nil
	}
	m.engines[flowID] = engine
	return engine, nil
}

// Invalidate drops the cached engine of flowID so the next turn reloads it.
func (m *Manager) Invalidate(flowID string) {
	m.enginesMu.Lock()
	defer m.enginesMu.Unlock()
	delete(m.engines, flowID)
}

// Get returns the stored conversation.
func (m *Manager) Get(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var conv *domain.Conversation
	err := m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		var err error
		conv, err = m.store.Load(ctx, conversationID)
		return err
	})
	return conv, err
}

// Reset removes the conversation; the next message starts the flow over.
func (m *Manager) Reset(ctx context.Context, conversationID string) error {
	return m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		return m.store.Delete(ctx, conversationID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Flows lists the flows available to new conversations.
func (m *Manager) Flows(ctx context.Context) ([]string, error) {
	return m.loader.ListFlows(ctx)
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// activeLocks reports how many lock entries are held, for leak checks.
func (m *Manager) activeLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock executes fn while holding the lock for the conversation.
func (m *Manager) WithLock(ctx context.Context, conversationID string, fn func(context.Context) error) error {
	entry := m.acquire(conversationID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(conversationID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, conversationID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"conversation_id", conversationID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
