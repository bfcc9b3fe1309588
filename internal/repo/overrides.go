package repo

import (
	"context"
	"database/sql"

	"leadtriage/internal/domain"
)

const overrideColumns = `seq,id,lead_id,action,reason,actor_id,created_at`

// Newest first. created_at alone can collide within one clock tick, seq never does.
const overrideOrder = `ORDER BY created_at DESC, seq DESC`

// InsertOverrideTx appends one ledger row and returns it with its storage
// sequence filled in. There is deliberately no update or delete counterpart.
func (r Repo) InsertOverrideTx(ctx context.Context, tx *sql.Tx, ev domain.OverrideEvent) (domain.OverrideEvent, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO overrides(id,lead_id,action,reason,actor_id,created_at) VALUES (?,?,?,?,?,?)`,
		ev.ID, ev.LeadID, string(ev.Action), nullableStringPtr(ev.Reason), nullable(ev.ActorID), ev.CreatedAt)
	if err != nil {
		return ev, err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return ev, err
	}
	ev.Seq = seq
	return ev, nil
}

func scanOverride(row scanner) (domain.OverrideEvent, error) {
	var ev domain.OverrideEvent
	var action string
	var reason, actor sql.NullString
	if err := row.Scan(&ev.Seq, &ev.ID, &ev.LeadID, &action, &reason, &actor, &ev.CreatedAt); err != nil {
		return ev, err
	}
	ev.Action = domain.Action(action)
	ev.Reason = nullString(reason)
	ev.ActorID = actor.String
	return ev, nil
}

// LatestOverride returns the most recent event for a lead, or nil.
func (r Repo) LatestOverride(ctx context.Context, leadID string) (*domain.OverrideEvent, error) {
	ev, err := scanOverride(r.DB.QueryRowContext(ctx, `SELECT `+overrideColumns+` FROM overrides WHERE lead_id=? `+overrideOrder+` LIMIT 1`, leadID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListOverrides returns the full ledger for a lead, newest first.
func (r Repo) ListOverrides(ctx context.Context, leadID string) ([]domain.OverrideEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+overrideColumns+` FROM overrides WHERE lead_id=? `+overrideOrder, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.OverrideEvent{}
	for rows.Next() {
		ev, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}
