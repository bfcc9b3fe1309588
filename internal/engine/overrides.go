package engine

import (
	"context"

	"github.com/google/uuid"

	"leadtriage/internal/domain"
	"leadtriage/internal/events"
)

// OverrideInput is a human decision to record against a lead.
type OverrideInput struct {
	LeadID  string
	Action  string
	Reason  string
	ActorID string
}

// AppendOverride validates and appends one ledger event. Nothing is written
// when validation fails. Repeated calls append repeated events.
func (e Engine) AppendOverride(ctx context.Context, in OverrideInput) (domain.OverrideEvent, error) {
	action, err := domain.ParseAction(in.Action)
	if err != nil {
		return domain.OverrideEvent{}, err
	}
	reason, err := domain.NormalizeReason(in.Reason)
	if err != nil {
		return domain.OverrideEvent{}, err
	}
	if in.LeadID == "" {
		return domain.OverrideEvent{}, domain.ValidationError{Field: "lead_id", Message: "required"}
	}
	if err := e.requireLead(ctx, in.LeadID); err != nil {
		return domain.OverrideEvent{}, persistErr("append override", err)
	}

	ev := domain.OverrideEvent{
		ID:        uuid.NewString(),
		LeadID:    in.LeadID,
		Action:    action,
		Reason:    reason,
		ActorID:   in.ActorID,
		CreatedAt: domain.Stamp(e.now()),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.OverrideEvent{}, persistErr("append override", err)
	}
	defer tx.Rollback()
	ev, err = e.Repo.InsertOverrideTx(ctx, tx, ev)
	if err != nil {
		return domain.OverrideEvent{}, persistErr("append override", err)
	}
	payload := events.Payload{"id": ev.ID, "action": string(ev.Action), "seq": ev.Seq}
	if ev.Reason != nil {
		payload["reason"] = *ev.Reason
	}
	if err := e.events().Append(ctx, tx, events.OverrideAppended, "lead", ev.LeadID, in.ActorID, payload); err != nil {
		return domain.OverrideEvent{}, persistErr("append override", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.OverrideEvent{}, persistErr("append override", err)
	}
	return ev, nil
}

// LatestOverride returns the newest event for a lead or nil.
func (e Engine) LatestOverride(ctx context.Context, leadID string) (*domain.OverrideEvent, error) {
	if err := e.requireLead(ctx, leadID); err != nil {
		return nil, err
	}
	return e.Repo.LatestOverride(ctx, leadID)
}

// OverrideHistory returns every event for a lead, newest first.
func (e Engine) OverrideHistory(ctx context.Context, leadID string) ([]domain.OverrideEvent, error) {
	if err := e.requireLead(ctx, leadID); err != nil {
		return nil, err
	}
	return e.Repo.ListOverrides(ctx, leadID)
}
