package ports

import "context"

// LeadUpdater writes qualification data to a lead record owned by the host (CRM, database).
type LeadUpdater interface {
	// UpdateLead merges fields into the lead identified by leadID.
	UpdateLead(ctx context.Context, leadID string, fields map[string]any) error
}
