// Package outcomes reads the external outcome feed and materialises it into
// the lead_outcomes table.
package outcomes

import (
	"context"

	"leadtriage/internal/domain"
	"leadtriage/internal/repo"
)

// Feed returns the latest outcome signal known for a lead. A lead the feed
// has never reported on yields a record with an empty signal.
type Feed interface {
	Outcome(ctx context.Context, leadID string) (domain.OutcomeRecord, error)
}

// TableFeed serves outcomes from the local lead_outcomes table.
type TableFeed struct {
	Repo repo.Repo
}

var _ Feed = TableFeed{}

func (f TableFeed) Outcome(ctx context.Context, leadID string) (domain.OutcomeRecord, error) {
	return f.Repo.GetOutcome(ctx, leadID)
}

// Store is the write side used by the ingestor.
type Store interface {
	UpsertOutcome(ctx context.Context, rec domain.OutcomeRecord) error
}
