package redis

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

// LeadStore implements ports.LeadUpdater with one hash per lead.
// Field values are stored JSON-encoded.
type LeadStore struct {
	client *backend.Client
	prefix string
}

// NewLeadStore creates a lead store sharing client.
func NewLeadStore(client *backend.Client, prefix string) *LeadStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &LeadStore{client: client, prefix: prefix}
}

func (s *LeadStore) key(leadID string) string {
	return s.prefix + "lead:" + leadID
}

// UpdateLead merges fields into the lead hash.
func (s *LeadStore) UpdateLead(ctx context.Context, leadID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode lead field %s: %w", k, err)
		}
		values[k] = string(data)
	}
	if err := s.client.HSet(ctx, s.key(leadID), values).Err(); err != nil {
		return fmt.Errorf("failed to update lead %s: %w", leadID, err)
	}
	return nil
}

// Lead reads back every field of a lead.
func (s *LeadStore) Lead(ctx context.Context, leadID string) (map[string]any, error) {
	raw, err := s.client.HGetAll(ctx, s.key(leadID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read lead %s: %w", leadID, err)
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			decoded = v
		}
		out[k] = decoded
	}
	return out, nil
}
