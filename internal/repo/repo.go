package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"leadtriage/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = domain.ErrNotFound

const leadColumns = `id,company_name,contact_name,email,phone,estimated_spend,source,buyer_quality,company_fit,urgency,engagement,deal_size_fit,decision_maker_engaged,budget_confirmed,timeline_confirmed,draft_id,created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (domain.Lead, error) {
	var l domain.Lead
	var contact, email, phone, source, draftID sql.NullString
	var spend sql.NullFloat64
	var bq, cf, urg, eng, dsf sql.NullInt64
	var dme, bc, tc int
	err := row.Scan(&l.ID, &l.CompanyName, &contact, &email, &phone, &spend, &source, &bq, &cf, &urg, &eng, &dsf, &dme, &bc, &tc, &draftID, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	if err != nil {
		return l, err
	}
	l.ContactName = nullString(contact)
	l.Email = nullString(email)
	l.Phone = nullString(phone)
	l.Source = nullString(source)
	l.DraftID = nullString(draftID)
	l.EstimatedSpend = nullFloat(spend)
	l.BuyerQuality = nullInt(bq)
	l.CompanyFit = nullInt(cf)
	l.Urgency = nullInt(urg)
	l.Engagement = nullInt(eng)
	l.DealSizeFit = nullInt(dsf)
	l.DecisionMakerEngaged = dme != 0
	l.BudgetConfirmed = bc != 0
	l.TimelineConfirmed = tc != 0
	return l, nil
}

func (r Repo) InsertLeadTx(ctx context.Context, tx *sql.Tx, l domain.Lead) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO leads(`+leadColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.CompanyName, nullableStringPtr(l.ContactName), nullableStringPtr(l.Email), nullableStringPtr(l.Phone),
		nullableFloatPtr(l.EstimatedSpend), nullableStringPtr(l.Source), nullableIntPtr(l.BuyerQuality), nullableIntPtr(l.CompanyFit),
		nullableIntPtr(l.Urgency), nullableIntPtr(l.Engagement), nullableIntPtr(l.DealSizeFit),
		boolInt(l.DecisionMakerEngaged), boolInt(l.BudgetConfirmed), boolInt(l.TimelineConfirmed), nullableStringPtr(l.DraftID), l.CreatedAt)
	return err
}

func (r Repo) GetLead(ctx context.Context, id string) (domain.Lead, error) {
	return scanLead(r.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=?`, id))
}

func (r Repo) LeadExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM leads WHERE id=?`, id).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) ListLeads(ctx context.Context) ([]domain.Lead, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// ScoreRow is the shape the external scorer writes for a lead or a draft.
type ScoreRow struct {
	Score             int
	RecommendedAction domain.Action
	PositiveReasons   []string
	NegativeReasons   []string
}

func (r Repo) GetLeadScore(ctx context.Context, leadID string) (domain.ScoredDecision, error) {
	var sd domain.ScoredDecision
	var action, pos, neg string
	err := r.DB.QueryRowContext(ctx, `SELECT lead_id,score,recommended_action,positive_reasons_json,negative_reasons_json FROM lead_scores WHERE lead_id=?`, leadID).
		Scan(&sd.LeadID, &sd.Score, &action, &pos, &neg)
	if err == sql.ErrNoRows {
		return sd, ErrNotFound
	}
	if err != nil {
		return sd, err
	}
	sd.RecommendedAction = domain.Action(action)
	if sd.PositiveReasons, err = decodeReasons(pos); err != nil {
		return sd, err
	}
	if sd.NegativeReasons, err = decodeReasons(neg); err != nil {
		return sd, err
	}
	return sd, nil
}

// PutLeadScore is the external scorer's write path; the core never calls it.
func (r Repo) PutLeadScore(ctx context.Context, leadID string, s ScoreRow, updatedAt string) error {
	return r.putScore(ctx, "lead_scores", "lead_id", leadID, s, updatedAt)
}

// PutDraftScore is the external scorer's write path for drafts.
func (r Repo) PutDraftScore(ctx context.Context, draftID string, s ScoreRow, updatedAt string) error {
	return r.putScore(ctx, "draft_scores", "draft_id", draftID, s, updatedAt)
}

func (r Repo) putScore(ctx context.Context, table, key, id string, s ScoreRow, updatedAt string) error {
	if !s.RecommendedAction.Valid() {
		return domain.ValidationError{Field: "recommended_action", Message: fmt.Sprintf("unknown action %q", s.RecommendedAction)}
	}
	pos, err := encodeReasons(s.PositiveReasons)
	if err != nil {
		return err
	}
	neg, err := encodeReasons(s.NegativeReasons)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %[1]s(%[2]s,score,recommended_action,positive_reasons_json,negative_reasons_json,updated_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(%[2]s) DO UPDATE SET score=excluded.score, recommended_action=excluded.recommended_action,
positive_reasons_json=excluded.positive_reasons_json, negative_reasons_json=excluded.negative_reasons_json, updated_at=excluded.updated_at`, table, key)
	_, err = r.DB.ExecContext(ctx, query, id, s.Score, string(s.RecommendedAction), pos, neg, updatedAt)
	return err
}

// GetOutcome returns the feed row for a lead. A missing row is a null outcome.
func (r Repo) GetOutcome(ctx context.Context, leadID string) (domain.OutcomeRecord, error) {
	rec := domain.OutcomeRecord{LeadID: leadID}
	var outcome sql.NullString
	var updatedAt string
	err := r.DB.QueryRowContext(ctx, `SELECT latest_outcome,updated_at FROM lead_outcomes WHERE lead_id=?`, leadID).Scan(&outcome, &updatedAt)
	if err == sql.ErrNoRows {
		return rec, nil
	}
	if err != nil {
		return rec, err
	}
	if outcome.Valid {
		rec.LatestOutcome = domain.OutcomeSignal(outcome.String)
	}
	rec.UpdatedAt = updatedAt
	return rec, nil
}

func (r Repo) UpsertOutcome(ctx context.Context, rec domain.OutcomeRecord) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO lead_outcomes(lead_id,latest_outcome,updated_at) VALUES (?,?,?)
ON CONFLICT(lead_id) DO UPDATE SET latest_outcome=excluded.latest_outcome, updated_at=excluded.updated_at`,
		rec.LeadID, nullable(string(rec.LatestOutcome)), rec.UpdatedAt)
	return err
}

type EventFilters struct {
	Type       string
	EntityKind string
	EntityID   string
	Limit      int
	Cursor     int64
}

func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryEvents(ctx, `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
}

// LatestEventID returns the most recent event ID.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		e.EntityID = entityID.String
		res = append(res, e)
	}
	return res, rows.Err()
}

func decodeReasons(raw string) ([]string, error) {
	out := []string{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode reasons: %w", err)
	}
	return out, nil
}

func encodeReasons(in []string) (string, error) {
	if in == nil {
		in = []string{}
	}
	b, err := json.Marshal(in)
	return string(b), err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
