// Package scoring is the read-only boundary to the external scoring process.
// Nothing here computes a score; providers only fetch what the scorer
// produced, and callers re-read after every mutation instead of caching.
package scoring

import (
	"context"
	"fmt"

	"leadtriage/internal/domain"
	"leadtriage/internal/repo"
)

// Provider returns the current ScoredDecision for a lead, or
// domain.ErrNotFound when the scorer has nothing for it.
type Provider interface {
	Score(ctx context.Context, leadID string) (domain.ScoredDecision, error)
}

// TableProvider reads the lead_scores table maintained by the scorer.
type TableProvider struct {
	Repo repo.Repo
}

var _ Provider = TableProvider{}

func (p TableProvider) Score(ctx context.Context, leadID string) (domain.ScoredDecision, error) {
	sd, err := p.Repo.GetLeadScore(ctx, leadID)
	if err != nil {
		return sd, err
	}
	if !sd.RecommendedAction.Valid() {
		return sd, fmt.Errorf("lead %s: scorer returned unknown action %q", leadID, sd.RecommendedAction)
	}
	return sd, nil
}
