package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"leadtriage/internal/domain"
	"leadtriage/internal/events"
	"leadtriage/internal/repo"
)

// CommitDrafts promotes the selected drafts to canonical leads in one
// transaction. Either every draft is committed or none is.
func (e Engine) CommitDrafts(ctx context.Context, ids []string, actorID string) ([]domain.Lead, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, domain.ValidationError{Field: "ids", Message: "select at least one draft"}
	}
	drafts, err := e.Repo.ListDrafts(ctx, repo.DraftFilters{IDs: ids})
	if err != nil {
		return nil, persistErr("commit drafts", err)
	}
	byID := make(map[string]domain.LeadDraft, len(drafts))
	for _, d := range drafts {
		byID[d.ID] = d
	}
	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
		}
		if d.Editable() && d.CompanyName == nil {
			return nil, domain.ValidationError{Field: string(domain.FieldCompanyName), Message: fmt.Sprintf("draft %s has no company name", id)}
		}
	}

	now := domain.Stamp(e.now())
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistErr("commit drafts", err)
	}
	defer tx.Rollback()
	leads := make([]domain.Lead, 0, len(ids))
	for _, id := range ids {
		d, err := e.Repo.GetDraftTx(ctx, tx, id)
		if err != nil {
			return nil, persistErr("commit drafts", fmt.Errorf("draft %s: %w", id, err))
		}
		if !d.Editable() {
			return nil, fmt.Errorf("draft %s is %s: %w", id, d.Status, domain.ErrNotEditable)
		}
		if d.CompanyName == nil {
			return nil, domain.ValidationError{Field: string(domain.FieldCompanyName), Message: fmt.Sprintf("draft %s has no company name", id)}
		}
		l := leadFromDraft(d, uuid.NewString(), now)
		if err := e.Repo.InsertLeadTx(ctx, tx, l); err != nil {
			return nil, persistErr("commit drafts", err)
		}
		if err := e.Repo.MarkDraftCommittedTx(ctx, tx, id, l.ID, now); err != nil {
			return nil, persistErr("commit drafts", err)
		}
		if err := e.events().Append(ctx, tx, events.DraftCommitted, "draft", id, actorID, events.Payload{"lead_id": l.ID}); err != nil {
			return nil, persistErr("commit drafts", err)
		}
		leads = append(leads, l)
	}
	if err := tx.Commit(); err != nil {
		return nil, persistErr("commit drafts", err)
	}
	return leads, nil
}

// DeleteDrafts removes the selected drafts in one transaction. confirmed
// must be true; committed drafts cannot be deleted.
func (e Engine) DeleteDrafts(ctx context.Context, ids []string, confirmed bool, actorID string) error {
	if !confirmed {
		return domain.ErrConfirmationRequired
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return domain.ValidationError{Field: "ids", Message: "select at least one draft"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("delete drafts", err)
	}
	defer tx.Rollback()
	for _, id := range ids {
		if err := e.Repo.DeleteDraftTx(ctx, tx, id); err != nil {
			return persistErr("delete drafts", err)
		}
		if err := e.events().Append(ctx, tx, events.DraftDeleted, "draft", id, actorID, nil); err != nil {
			return persistErr("delete drafts", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return persistErr("delete drafts", err)
	}
	return nil
}
