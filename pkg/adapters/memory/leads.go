package memory

import (
	"context"
	"sync"
)

// LeadStore implements ports.LeadUpdater in memory.
type LeadStore struct {
	mu    sync.RWMutex
	leads map[string]map[string]any
}

// NewLeadStore creates an empty lead store.
func NewLeadStore() *LeadStore {
	return &LeadStore{leads: make(map[string]map[string]any)}
}

// UpdateLead merges fields into the lead, creating it when missing.
func (s *LeadStore) UpdateLead(ctx context.Context, leadID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[leadID]
	if !ok {
		lead = make(map[string]any, len(fields))
		s.leads[leadID] = lead
	}
	for k, v := range fields {
		lead[k] = v
	}
	return nil
}

// Lead returns a copy of the stored fields.
func (s *LeadStore) Lead(leadID string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[leadID]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(lead))
	for k, v := range lead {
		out[k] = v
	}
	return out, true
}
