package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/leadflow/internal/compiler"
	"github.com/aretw0/leadflow/pkg/domain"
)

// Loader implements ports.FlowLoader using an in-memory map.
// Flows can be added at runtime with Put. Safe for concurrent use.
type Loader struct {
	mu    sync.RWMutex
	flows map[string]*domain.FlowDefinition
}

// NewLoader creates a loader holding the given flows, keyed by id.
func NewLoader(flows map[string]*domain.FlowDefinition) *Loader {
	l := &Loader{flows: make(map[string]*domain.FlowDefinition, len(flows))}
	for id, f := range flows {
		l.Put(id, f)
	}
	return l
}

// NewFromDocuments parses raw JSON or YAML flow documents keyed by id.
// This improves DX for tests and embedded flows.
func NewFromDocuments(docs map[string]string) (*Loader, error) {
	parser := compiler.NewParser()
	l := NewLoader(nil)
	for id, doc := range docs {
		flow, err := parser.Parse([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("flow %s: %w", id, err)
		}
		l.Put(id, flow)
	}
	return l, nil
}

// Put registers or replaces a flow. The flow's ID is set to id when empty.
func (l *Loader) Put(id string, flow *domain.FlowDefinition) {
	if flow.ID == "" {
		copied := *flow
		copied.ID = id
		flow = &copied
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.flows[id] = flow
}

// GetFlow returns the flow registered under id.
func (l *Loader) GetFlow(ctx context.Context, id string) (*domain.FlowDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	flow, ok := l.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
	}
	return flow, nil
}

// ListFlows returns all flow ids.
func (l *Loader) ListFlows(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.flows))
	for k := range l.flows {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
