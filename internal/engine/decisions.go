package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"leadtriage/internal/domain"
)

// ResolveDecision reads the score, the latest override and the outcome for
// a lead concurrently and combines them. The result is never stored.
func (e Engine) ResolveDecision(ctx context.Context, leadID string) (domain.EffectiveDecision, error) {
	var (
		sd      domain.ScoredDecision
		latest  *domain.OverrideEvent
		outcome domain.OutcomeRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sd, err = e.Scores.Score(gctx, leadID)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("score for lead %s: %w", leadID, domain.ErrNotFound)
		}
		return err
	})
	g.Go(func() error {
		var err error
		latest, err = e.Repo.LatestOverride(gctx, leadID)
		return err
	})
	g.Go(func() error {
		var err error
		outcome, err = e.Outcomes.Outcome(gctx, leadID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.EffectiveDecision{}, err
	}
	sd.LeadID = leadID
	return domain.Resolve(sd, latest, outcome), nil
}

// DecisionEntry is one row of the decision list. Exactly one of Decision or
// Error is set.
type DecisionEntry struct {
	LeadID      string                    `json:"lead_id"`
	CompanyName string                    `json:"company_name"`
	Decision    *domain.EffectiveDecision `json:"decision,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

// ListDecisions resolves every lead. A lead the scorer has not reached yet is
// reported with an error instead of being dropped.
func (e Engine) ListDecisions(ctx context.Context) ([]DecisionEntry, error) {
	leads, err := e.Repo.ListLeads(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DecisionEntry, len(leads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, l := range leads {
		g.Go(func() error {
			entry := DecisionEntry{LeadID: l.ID, CompanyName: l.CompanyName}
			d, err := e.ResolveDecision(gctx, l.ID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				entry.Error = "not scored yet"
			case err != nil:
				return fmt.Errorf("resolve lead %s: %w", l.ID, err)
			default:
				entry.Decision = &d
			}
			out[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
