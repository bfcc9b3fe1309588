package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"leadtriage/internal/db"
	"leadtriage/internal/domain"
	"leadtriage/internal/engine"
	"leadtriage/internal/migrate"
	"leadtriage/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn)
	eng.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) lead(t *testing.T, company string, action domain.Action) domain.Lead {
	t.Helper()
	l, err := env.Engine.CreateLead(env.Ctx, map[domain.DraftField]string{domain.FieldCompanyName: company}, "tester")
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	if action != "" {
		row := repo.ScoreRow{Score: 64, RecommendedAction: action, PositiveReasons: []string{"fit"}}
		if err := env.Engine.Repo.PutLeadScore(env.Ctx, l.ID, row, "2026-01-01T00:00:00Z"); err != nil {
			t.Fatalf("seed score: %v", err)
		}
	}
	return l
}

// tick advances the engine clock by one second on every call.
func (env *testEnv) tick() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	env.Engine.Now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestResolveWithoutOverrides(t *testing.T) {
	env := newTestEnv(t)
	l := env.lead(t, "Acme", domain.ActionReview)

	d, err := env.Engine.ResolveDecision(env.Ctx, l.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d.EffectiveAction != domain.ActionReview || d.RecommendedAction != domain.ActionReview {
		t.Fatalf("expected review, got %+v", d)
	}
	if d.OutcomeStatus != domain.OutcomeStatusPending {
		t.Fatalf("expected pending, got %s", d.OutcomeStatus)
	}
	if d.LatestOverrideAction != nil || d.IsOverridden {
		t.Fatalf("unexpected override on fresh lead: %+v", d)
	}
}

func TestResolveUsesOutcomeFeed(t *testing.T) {
	env := newTestEnv(t)
	l := env.lead(t, "Acme", domain.ActionPursue)
	for sig, want := range map[domain.OutcomeSignal]domain.OutcomeStatus{
		domain.OutcomeWon:        domain.OutcomeStatusWon,
		domain.OutcomeLost:       domain.OutcomeStatusLost,
		domain.OutcomeNoResponse: domain.OutcomeStatusPending,
		domain.OutcomeNone:       domain.OutcomeStatusPending,
	} {
		if err := env.Engine.Repo.UpsertOutcome(env.Ctx, domain.OutcomeRecord{LeadID: l.ID, LatestOutcome: sig, UpdatedAt: "2026-01-02T00:00:00Z"}); err != nil {
			t.Fatalf("upsert outcome: %v", err)
		}
		d, err := env.Engine.ResolveDecision(env.Ctx, l.ID)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if d.OutcomeStatus != want {
			t.Fatalf("outcome %q: expected %s, got %s", sig, want, d.OutcomeStatus)
		}
	}
}

func TestResolveUnscoredLead(t *testing.T) {
	env := newTestEnv(t)
	l := env.lead(t, "Acme", "")
	if _, err := env.Engine.ResolveDecision(env.Ctx, l.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	entries, err := env.Engine.ListDecisions(env.Ctx)
	if err != nil {
		t.Fatalf("list decisions: %v", err)
	}
	if len(entries) != 1 || entries[0].Decision != nil || entries[0].Error == "" {
		t.Fatalf("expected unscored entry, got %+v", entries)
	}
}

func TestLatestOverrideWins(t *testing.T) {
	env := newTestEnv(t)
	env.tick()
	l := env.lead(t, "Acme", domain.ActionReview)

	if _, err := env.Engine.AppendOverride(env.Ctx, engine.OverrideInput{LeadID: l.ID, Action: "kill", Reason: "no budget"}); err != nil {
		t.Fatalf("append A: %v", err)
	}
	if _, err := env.Engine.AppendOverride(env.Ctx, engine.OverrideInput{LeadID: l.ID, Action: "pursue", Reason: "  "}); err != nil {
		t.Fatalf("append B: %v", err)
	}
	d, err := env.Engine.ResolveDecision(env.Ctx, l.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d.EffectiveAction != domain.ActionPursue || !d.IsOverridden {
		t.Fatalf("expected pursue override, got %+v", d)
	}
	if d.LatestOverrideReason != nil {
		t.Fatalf("whitespace reason should be stored as null, got %q", *d.LatestOverrideReason)
	}
	history, err := env.Engine.OverrideHistory(env.Ctx, l.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Action != domain.ActionPursue || history[1].Action != domain.ActionKill {
		t.Fatalf("expected [pursue kill], got %+v", history)
	}
}

func TestSameTimestampUsesSequence(t *testing.T) {
	env := newTestEnv(t)
	l := env.lead(t, "Acme", domain.ActionReview)

	first, err := env.Engine.AppendOverride(env.Ctx, engine.OverrideInput{LeadID: l.ID, Action: "kill"})
	if err != nil {
		t.Fatalf("append first: %v", err)
	}
	second, err := env.Engine.AppendOverride(env.Ctx, engine.OverrideInput{LeadID: l.ID, Action: "deprioritise"})
	if err != nil {
		t.Fatalf("append second: %v", err)
	}
	if first.CreatedAt != second.CreatedAt {
		t.Fatalf("expected shared timestamp with fixed clock")
	}
	if second.Seq <= first.Seq {
		t.Fatalf("expected increasing seq, got %d then %d", first.Seq, second.Seq)
	}
	latest, err := env.Engine.LatestOverride(env.Ctx, l.ID)
	if err != nil || latest == nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != second.ID {
		t.Fatalf("expected second event to win tie, got %s", latest.Action)
	}
}

func TestAppendOverrideValidation(t *testing.T) {
	env := newTestEnv(t)
	l := env.lead(t, "Acme", domain.ActionReview)

	long := strings.Repeat("a", 279) + "z"
	ev, err := env.Engine.AppendOverride(env.Ctx, engine.OverrideInput{LeadID: l.ID, Action: "kill", Reason: long})
	if err != nil {
		t.Fatalf("280 chars should pass: %v", err)
	}
	if ev.Reason == nil || *ev.Reason != long {
		t.Fatalf("reason not stored verbatim: %v", ev.Reason)
	}
	_, err = env.Engine.AppendOverride(env.Ctx, engine.OverrideInput{LeadID: l.ID, Action: "kill", Reason: strings.Repeat("a", 281)})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for 281 chars, got %v", err)
	}
	if _, err := env.Engine.AppendOverride(env.Ctx, engine.OverrideInput{LeadID: l.ID, Action: "escalate"}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for unknown action, got %v", err)
	}
	if _, err := env.Engine.AppendOverride(env.Ctx, engine.OverrideInput{LeadID: "missing", Action: "kill"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	history, err := env.Engine.OverrideHistory(env.Ctx, l.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("rejected appends must not write, got %d events", len(history))
	}
	if history[0].Reason == nil || *history[0].Reason != long {
		t.Fatalf("history reason not verbatim: %v", history[0].Reason)
	}
}

func TestOverrideReadsRequireLead(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.LatestOverride(env.Ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("latest: expected not found, got %v", err)
	}
	if _, err := env.Engine.OverrideHistory(env.Ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("history: expected not found, got %v", err)
	}

	l := env.lead(t, "Acme", domain.ActionReview)
	latest, err := env.Engine.LatestOverride(env.Ctx, l.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected no override yet, got %+v", latest)
	}
}

func TestOverrideLedgerIsAppendOnly(t *testing.T) {
	env := newTestEnv(t)
	l := env.lead(t, "Acme", domain.ActionReview)
	ev, err := env.Engine.AppendOverride(env.Ctx, engine.OverrideInput{LeadID: l.ID, Action: "kill"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := env.Engine.DB.ExecContext(env.Ctx, `UPDATE overrides SET action='pursue' WHERE id=?`, ev.ID); err == nil {
		t.Fatalf("expected update to be rejected")
	}
	if _, err := env.Engine.DB.ExecContext(env.Ctx, `DELETE FROM overrides WHERE id=?`, ev.ID); err == nil {
		t.Fatalf("expected delete to be rejected")
	}
}

func TestSaveDraftPatch(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Engine.CreateDraft(env.Ctx, map[domain.DraftField]string{domain.FieldContactName: "Ada"}, "tester")
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	patch := domain.DraftPatch{domain.FieldCompanyName: "Globex", domain.FieldUrgency: 5, domain.FieldBudgetConfirmed: true}
	if err := env.Engine.SaveDraftPatch(env.Ctx, d.ID, patch); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := env.Engine.GetDraft(env.Ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CompanyName == nil || *got.CompanyName != "Globex" || got.Urgency == nil || *got.Urgency != 5 || !got.BudgetConfirmed {
		t.Fatalf("patch not stored: %+v", got)
	}
	if got.ContactName == nil || *got.ContactName != "Ada" {
		t.Fatalf("untouched field changed: %+v", got)
	}
	if got.Score != nil || got.RecommendedAction != nil {
		t.Fatalf("draft should have no derived score yet")
	}

	if err := env.Engine.SaveDraftPatch(env.Ctx, "missing", patch); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := env.Engine.CommitDrafts(env.Ctx, []string{d.ID}, "tester"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := env.Engine.SaveDraftPatch(env.Ctx, d.ID, patch); !errors.Is(err, domain.ErrNotEditable) {
		t.Fatalf("expected not editable, got %v", err)
	}
}

func TestDraftReadsDerivedScore(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Engine.CreateDraft(env.Ctx, nil, "tester")
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	row := repo.ScoreRow{Score: 40, RecommendedAction: domain.ActionDeprioritise, NegativeReasons: []string{"small deal"}}
	if err := env.Engine.Repo.PutDraftScore(env.Ctx, d.ID, row, "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("seed draft score: %v", err)
	}
	got, err := env.Engine.GetDraft(env.Ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score == nil || *got.Score != 40 || got.RecommendedAction == nil || *got.RecommendedAction != domain.ActionDeprioritise {
		t.Fatalf("derived score missing: %+v", got)
	}
	if len(got.NegativeReasons) != 1 {
		t.Fatalf("reasons missing: %+v", got)
	}
}

func TestCommitIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	form := map[domain.DraftField]string{domain.FieldCompanyName: "Initech", domain.FieldBuyerQuality: "9"}
	a, err := env.Engine.CreateDraft(env.Ctx, form, "tester")
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := env.Engine.CreateDraft(env.Ctx, form, "tester")
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	if _, err := env.Engine.CommitDrafts(env.Ctx, []string{b.ID}, "tester"); err != nil {
		t.Fatalf("commit b: %v", err)
	}

	_, err = env.Engine.CommitDrafts(env.Ctx, []string{a.ID, b.ID}, "tester")
	if !errors.Is(err, domain.ErrNotEditable) {
		t.Fatalf("expected not editable, got %v", err)
	}
	got, err := env.Engine.GetDraft(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	if got.Status != domain.DraftStatusDraft {
		t.Fatalf("draft a must stay draft after failed batch, got %s", got.Status)
	}
	leads, err := env.Engine.ListLeads(env.Ctx)
	if err != nil {
		t.Fatalf("list leads: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected only b's lead, got %d", len(leads))
	}

	created, err := env.Engine.CommitDrafts(env.Ctx, []string{a.ID}, "tester")
	if err != nil {
		t.Fatalf("commit a: %v", err)
	}
	if len(created) != 1 || created[0].BuyerQuality == nil || *created[0].BuyerQuality != 5 {
		t.Fatalf("unexpected lead: %+v", created)
	}
	got, _ = env.Engine.GetDraft(env.Ctx, a.ID)
	if got.Status != domain.DraftStatusCommitted || got.CommittedLeadID == nil || *got.CommittedLeadID != created[0].ID {
		t.Fatalf("draft not stamped: %+v", got)
	}
}

func TestCommitValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CommitDrafts(env.Ctx, nil, "tester"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty set, got %v", err)
	}
	d, err := env.Engine.CreateDraft(env.Ctx, nil, "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.Engine.CommitDrafts(env.Ctx, []string{d.ID}, "tester"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for missing company name, got %v", err)
	}
	if _, err := env.Engine.CommitDrafts(env.Ctx, []string{"missing"}, "tester"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteDrafts(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.Engine.CreateDraft(env.Ctx, map[domain.DraftField]string{domain.FieldCompanyName: "Hooli"}, "tester")
	b, _ := env.Engine.CreateDraft(env.Ctx, nil, "tester")

	if err := env.Engine.DeleteDrafts(env.Ctx, []string{a.ID, b.ID}, false, "tester"); !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	if _, err := env.Engine.CommitDrafts(env.Ctx, []string{a.ID}, "tester"); err != nil {
		t.Fatalf("commit a: %v", err)
	}
	if err := env.Engine.DeleteDrafts(env.Ctx, []string{b.ID, a.ID}, true, "tester"); !errors.Is(err, domain.ErrNotEditable) {
		t.Fatalf("expected not editable for committed draft, got %v", err)
	}
	if _, err := env.Engine.GetDraft(env.Ctx, b.ID); err != nil {
		t.Fatalf("b must survive failed batch: %v", err)
	}
	if err := env.Engine.DeleteDrafts(env.Ctx, []string{b.ID}, true, "tester"); err != nil {
		t.Fatalf("delete b: %v", err)
	}
	if _, err := env.Engine.GetDraft(env.Ctx, b.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected b gone, got %v", err)
	}
}

func TestMutationsWriteEvents(t *testing.T) {
	env := newTestEnv(t)
	l := env.lead(t, "Acme", domain.ActionReview)
	if _, err := env.Engine.AppendOverride(env.Ctx, engine.OverrideInput{LeadID: l.ID, Action: "kill", ActorID: "alice"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	evs, err := env.Engine.Repo.LatestEvents(env.Ctx, repo.EventFilters{EntityID: l.ID})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evs) != 2 || evs[0].Type != "override.appended" || evs[0].ActorID != "alice" {
		t.Fatalf("unexpected events: %+v", evs)
	}
}
