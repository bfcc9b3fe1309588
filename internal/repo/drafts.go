package repo

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"leadtriage/internal/domain"
)

var draftSelect = []string{
	"d.id", "d.status", "d.committed_lead_id", "d.committed_at",
	"d.company_name", "d.contact_name", "d.email", "d.phone", "d.estimated_spend", "d.source",
	"d.buyer_quality", "d.company_fit", "d.urgency", "d.engagement", "d.deal_size_fit",
	"d.decision_maker_engaged", "d.budget_confirmed", "d.timeline_confirmed",
	"d.created_at", "d.updated_at",
	"s.score", "s.recommended_action", "s.positive_reasons_json", "s.negative_reasons_json",
}

func draftQuery() sq.SelectBuilder {
	return sq.Select(draftSelect...).
		From("lead_drafts d").
		LeftJoin("draft_scores s ON s.draft_id = d.id")
}

func scanDraft(row scanner) (domain.LeadDraft, error) {
	var d domain.LeadDraft
	var status string
	var committedLead, committedAt, company, contact, email, phone, source sql.NullString
	var spend sql.NullFloat64
	var bq, cf, urg, eng, dsf sql.NullInt64
	var dme, bc, tc int
	var score sql.NullInt64
	var action, pos, neg sql.NullString
	err := row.Scan(&d.ID, &status, &committedLead, &committedAt,
		&company, &contact, &email, &phone, &spend, &source,
		&bq, &cf, &urg, &eng, &dsf,
		&dme, &bc, &tc,
		&d.CreatedAt, &d.UpdatedAt,
		&score, &action, &pos, &neg)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	d.Status = domain.DraftStatus(status)
	d.CommittedLeadID = nullString(committedLead)
	d.CommittedAt = nullString(committedAt)
	d.CompanyName = nullString(company)
	d.ContactName = nullString(contact)
	d.Email = nullString(email)
	d.Phone = nullString(phone)
	d.Source = nullString(source)
	d.EstimatedSpend = nullFloat(spend)
	d.BuyerQuality = nullInt(bq)
	d.CompanyFit = nullInt(cf)
	d.Urgency = nullInt(urg)
	d.Engagement = nullInt(eng)
	d.DealSizeFit = nullInt(dsf)
	d.DecisionMakerEngaged = dme != 0
	d.BudgetConfirmed = bc != 0
	d.TimelineConfirmed = tc != 0
	d.Score = nullInt(score)
	if action.Valid {
		a := domain.Action(action.String)
		d.RecommendedAction = &a
	}
	if d.PositiveReasons, err = decodeReasons(pos.String); err != nil {
		return d, err
	}
	if d.NegativeReasons, err = decodeReasons(neg.String); err != nil {
		return d, err
	}
	return d, nil
}

// InsertDraftTx stores a new draft with whatever fields the caller set.
func (r Repo) InsertDraftTx(ctx context.Context, tx *sql.Tx, d domain.LeadDraft) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO lead_drafts(id,status,company_name,contact_name,email,phone,estimated_spend,source,
buyer_quality,company_fit,urgency,engagement,deal_size_fit,decision_maker_engaged,budget_confirmed,timeline_confirmed,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, string(d.Status), nullableStringPtr(d.CompanyName), nullableStringPtr(d.ContactName), nullableStringPtr(d.Email),
		nullableStringPtr(d.Phone), nullableFloatPtr(d.EstimatedSpend), nullableStringPtr(d.Source),
		nullableIntPtr(d.BuyerQuality), nullableIntPtr(d.CompanyFit), nullableIntPtr(d.Urgency), nullableIntPtr(d.Engagement), nullableIntPtr(d.DealSizeFit),
		boolInt(d.DecisionMakerEngaged), boolInt(d.BudgetConfirmed), boolInt(d.TimelineConfirmed), d.CreatedAt, d.UpdatedAt)
	return err
}

func (r Repo) GetDraft(ctx context.Context, id string) (domain.LeadDraft, error) {
	query, args, err := draftQuery().Where(sq.Eq{"d.id": id}).ToSql()
	if err != nil {
		return domain.LeadDraft{}, err
	}
	return scanDraft(r.DB.QueryRowContext(ctx, query, args...))
}

func (r Repo) GetDraftTx(ctx context.Context, tx *sql.Tx, id string) (domain.LeadDraft, error) {
	query, args, err := draftQuery().Where(sq.Eq{"d.id": id}).ToSql()
	if err != nil {
		return domain.LeadDraft{}, err
	}
	return scanDraft(tx.QueryRowContext(ctx, query, args...))
}

type DraftFilters struct {
	Status domain.DraftStatus
	IDs    []string
}

func (r Repo) ListDrafts(ctx context.Context, f DraftFilters) ([]domain.LeadDraft, error) {
	q := draftQuery().OrderBy("d.created_at DESC", "d.id DESC")
	if f.Status != "" {
		q = q.Where(sq.Eq{"d.status": string(f.Status)})
	}
	if len(f.IDs) > 0 {
		q = q.Where(sq.Eq{"d.id": f.IDs})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.LeadDraft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// UpdateDraftFieldsTx writes only the patched columns, and only while the
// draft is still in draft status.
func (r Repo) UpdateDraftFieldsTx(ctx context.Context, tx *sql.Tx, id string, patch domain.DraftPatch, updatedAt string) error {
	if len(patch) == 0 {
		return nil
	}
	b := sq.Update("lead_drafts").
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": id, "status": string(domain.DraftStatusDraft)})
	for _, f := range patch.Fields() {
		b = b.Set(string(f), columnValue(patch[f]))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return r.requireDraftRow(ctx, tx, res, id)
}

// MarkDraftCommittedTx stamps the committed lead on a draft row.
func (r Repo) MarkDraftCommittedTx(ctx context.Context, tx *sql.Tx, id, leadID, committedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE lead_drafts SET status=?, committed_lead_id=?, committed_at=?, updated_at=? WHERE id=? AND status=?`,
		string(domain.DraftStatusCommitted), leadID, committedAt, committedAt, id, string(domain.DraftStatusDraft))
	if err != nil {
		return err
	}
	return r.requireDraftRow(ctx, tx, res, id)
}

// DeleteDraftTx removes a draft that has not been committed. Its derived
// score row cascades.
func (r Repo) DeleteDraftTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM lead_drafts WHERE id=? AND status=?`, id, string(domain.DraftStatusDraft))
	if err != nil {
		return err
	}
	return r.requireDraftRow(ctx, tx, res, id)
}

// requireDraftRow turns a zero-row write into ErrNotFound or ErrNotEditable.
func (r Repo) requireDraftRow(ctx context.Context, tx *sql.Tx, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM lead_drafts WHERE id=?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("draft %s is %s: %w", id, status, domain.ErrNotEditable)
}

func columnValue(v any) any {
	if b, ok := v.(bool); ok {
		return boolInt(b)
	}
	return v
}
