package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"leadtriage/internal/domain"
	"leadtriage/internal/events"
)

// CreateLead inserts a canonical lead directly, bypassing the draft flow.
// Form values are coerced with the same rules as draft fields.
func (e Engine) CreateLead(ctx context.Context, form map[domain.DraftField]string, actorID string) (domain.Lead, error) {
	patch, err := coerceForm(form)
	if err != nil {
		return domain.Lead{}, err
	}
	var scratch domain.LeadDraft
	scratch.ApplyPatch(patch)
	if scratch.CompanyName == nil {
		return domain.Lead{}, domain.ValidationError{Field: string(domain.FieldCompanyName), Message: "required"}
	}
	l := leadFromDraft(scratch, uuid.NewString(), domain.Stamp(e.now()))
	l.DraftID = nil

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Lead{}, persistErr("create lead", err)
	}
	defer tx.Rollback()
	if err := e.Repo.InsertLeadTx(ctx, tx, l); err != nil {
		return domain.Lead{}, persistErr("create lead", err)
	}
	if err := e.events().Append(ctx, tx, events.LeadCreated, "lead", l.ID, actorID, events.Payload{"company_name": l.CompanyName}); err != nil {
		return domain.Lead{}, persistErr("create lead", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Lead{}, persistErr("create lead", err)
	}
	return l, nil
}

func (e Engine) GetLead(ctx context.Context, id string) (domain.Lead, error) {
	l, err := e.Repo.GetLead(ctx, id)
	if err != nil {
		return l, fmt.Errorf("lead %s: %w", id, err)
	}
	return l, nil
}

func (e Engine) ListLeads(ctx context.Context) ([]domain.Lead, error) {
	items, err := e.Repo.ListLeads(ctx)
	if err != nil {
		return nil, persistErr("list leads", err)
	}
	return items, nil
}

func leadFromDraft(d domain.LeadDraft, id, createdAt string) domain.Lead {
	draftID := d.ID
	l := domain.Lead{
		ID:                   id,
		ContactName:          d.ContactName,
		Email:                d.Email,
		Phone:                d.Phone,
		EstimatedSpend:       d.EstimatedSpend,
		Source:               d.Source,
		BuyerQuality:         d.BuyerQuality,
		CompanyFit:           d.CompanyFit,
		Urgency:              d.Urgency,
		Engagement:           d.Engagement,
		DealSizeFit:          d.DealSizeFit,
		DecisionMakerEngaged: d.DecisionMakerEngaged,
		BudgetConfirmed:      d.BudgetConfirmed,
		TimelineConfirmed:    d.TimelineConfirmed,
		DraftID:              &draftID,
		CreatedAt:            createdAt,
	}
	if d.CompanyName != nil {
		l.CompanyName = *d.CompanyName
	}
	return l
}
