package engine

import (
	"context"

	"github.com/google/uuid"

	"leadtriage/internal/domain"
	"leadtriage/internal/events"
	"leadtriage/internal/repo"
)

// coerceForm turns raw form input into a patch, rejecting unknown fields.
func coerceForm(form map[domain.DraftField]string) (domain.DraftPatch, error) {
	patch := domain.DraftPatch{}
	for field, raw := range form {
		v, err := domain.CoerceField(field, raw)
		if err != nil {
			return nil, err
		}
		patch[field] = v
	}
	return patch, nil
}

// CreateDraft stores a blank draft, optionally pre-filled from form values.
func (e Engine) CreateDraft(ctx context.Context, form map[domain.DraftField]string, actorID string) (domain.LeadDraft, error) {
	patch, err := coerceForm(form)
	if err != nil {
		return domain.LeadDraft{}, err
	}
	now := domain.Stamp(e.now())
	d := domain.LeadDraft{
		ID:              uuid.NewString(),
		Status:          domain.DraftStatusDraft,
		PositiveReasons: []string{},
		NegativeReasons: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	d.ApplyPatch(patch)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.LeadDraft{}, persistErr("create draft", err)
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDraftTx(ctx, tx, d); err != nil {
		return domain.LeadDraft{}, persistErr("create draft", err)
	}
	if err := e.events().Append(ctx, tx, events.DraftCreated, "draft", d.ID, actorID, events.Payload{"fields": fieldNames(patch)}); err != nil {
		return domain.LeadDraft{}, persistErr("create draft", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.LeadDraft{}, persistErr("create draft", err)
	}
	return d, nil
}

func (e Engine) GetDraft(ctx context.Context, id string) (domain.LeadDraft, error) {
	return e.Repo.GetDraft(ctx, id)
}

func (e Engine) ListDrafts(ctx context.Context, f repo.DraftFilters) ([]domain.LeadDraft, error) {
	return e.Repo.ListDrafts(ctx, f)
}

// SaveDraftPatch writes only the fields present in patch. It fails with
// ErrNotEditable once the draft has been committed and ErrNotFound when it is
// gone; storage failures come back as PersistenceError.
func (e Engine) SaveDraftPatch(ctx context.Context, id string, patch domain.DraftPatch) error {
	for f := range patch {
		if _, err := domain.ParseDraftField(string(f)); err != nil {
			return err
		}
	}
	if len(patch) == 0 {
		return nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("save draft", err)
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateDraftFieldsTx(ctx, tx, id, patch, domain.Stamp(e.now())); err != nil {
		return persistErr("save draft", err)
	}
	if err := e.events().Append(ctx, tx, events.DraftUpdated, "draft", id, "", events.Payload{"fields": fieldNames(patch)}); err != nil {
		return persistErr("save draft", err)
	}
	if err := tx.Commit(); err != nil {
		return persistErr("save draft", err)
	}
	return nil
}

func fieldNames(p domain.DraftPatch) []string {
	fields := p.Fields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}
