package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"leadtriage/internal/domain"
	"leadtriage/internal/events"
	"leadtriage/internal/outcomes"
	"leadtriage/internal/repo"
	"leadtriage/internal/scoring"
)

// Engine owns every write transaction of the triage core. Reads of derived
// state (scores, outcomes) go through the provider boundaries and are never
// cached.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Scores   scoring.Provider
	Outcomes outcomes.Feed
	Now      func() time.Time
}

func New(db *sql.DB) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:       db,
		Repo:     r,
		Scores:   scoring.TableProvider{Repo: r},
		Outcomes: outcomes.TableFeed{Repo: r},
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// persistErr leaves the domain sentinels visible to callers and wraps
// everything else as a PersistenceError.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNotEditable) || domain.IsValidation(err) {
		return err
	}
	var pe domain.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return domain.PersistenceError{Op: op, Err: err}
}

func (e Engine) requireLead(ctx context.Context, leadID string) error {
	ok, err := e.Repo.LeadExists(ctx, leadID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("lead %s: %w", leadID, domain.ErrNotFound)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
