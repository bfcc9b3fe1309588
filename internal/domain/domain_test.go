package domain_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadtriage/internal/domain"
)

func TestActionPresentationIsExhaustive(t *testing.T) {
	seen := map[int]bool{}
	for _, a := range domain.Actions {
		p := a.Present()
		assert.NotEmpty(t, p.Label, "label for %s", a)
		assert.NotEmpty(t, p.Tone, "tone for %s", a)
		assert.False(t, seen[p.Rank], "duplicate rank %d", p.Rank)
		seen[p.Rank] = true
	}
	assert.Panics(t, func() { domain.Action("escalate").Present() })
}

func TestParseAction(t *testing.T) {
	a, err := domain.ParseAction(" Kill ")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionKill, a)

	_, err = domain.ParseAction("escalate")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestStatusFromOutcome(t *testing.T) {
	cases := map[domain.OutcomeSignal]domain.OutcomeStatus{
		domain.OutcomeWon:        domain.OutcomeStatusWon,
		domain.OutcomeLost:       domain.OutcomeStatusLost,
		domain.OutcomeNoResponse: domain.OutcomeStatusPending,
		domain.OutcomeNone:       domain.OutcomeStatusPending,
	}
	for in, want := range cases {
		assert.Equal(t, want, domain.StatusFromOutcome(in), "outcome %q", in)
	}
}

func TestCoerceMetric(t *testing.T) {
	cases := []struct {
		raw  string
		want any
	}{
		{"7.8", 5},
		{"-3", 1},
		{"abc", nil},
		{"5.9", 5},
		{"-2", 1},
		{"7", 5},
		{"3", 3},
		{"0.5", 1},
		{"", nil},
		{"NaN", nil},
		{"Inf", nil},
	}
	for _, tc := range cases {
		got, err := domain.CoerceField(domain.FieldBuyerQuality, tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, "raw %q", tc.raw)
	}
}

func TestCoerceMetricAlwaysInRange(t *testing.T) {
	for _, raw := range []string{"-1e9", "1e9", "4.999", "1.0001", "2", "-0", "0"} {
		got, err := domain.CoerceField(domain.FieldUrgency, raw)
		require.NoError(t, err)
		v, ok := got.(int)
		require.True(t, ok, raw)
		assert.GreaterOrEqual(t, v, domain.MetricMin)
		assert.LessOrEqual(t, v, domain.MetricMax)
	}
}

func TestCoerceTextAndAmount(t *testing.T) {
	got, err := domain.CoerceField(domain.FieldCompanyName, "   ")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = domain.CoerceField(domain.FieldCompanyName, " Acme ")
	require.NoError(t, err)
	assert.Equal(t, " Acme ", got)

	got, err = domain.CoerceField(domain.FieldEstimatedSpend, "$12,500.50")
	require.NoError(t, err)
	assert.Equal(t, 12500.5, got)

	got, err = domain.CoerceField(domain.FieldEstimatedSpend, "lots")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCoerceCapability(t *testing.T) {
	got, err := domain.CoerceField(domain.FieldBudgetConfirmed, "yes")
	require.NoError(t, err)
	assert.Equal(t, true, got)

	_, err = domain.CoerceField(domain.FieldBudgetConfirmed, "maybe")
	assert.True(t, domain.IsValidation(err))
}

func TestUnknownField(t *testing.T) {
	_, err := domain.ParseDraftField("score")
	assert.True(t, domain.IsValidation(err))
}

func TestApplyPatch(t *testing.T) {
	var d domain.LeadDraft
	d.ApplyPatch(domain.DraftPatch{
		domain.FieldCompanyName:       "Acme",
		domain.FieldBuyerQuality:      4,
		domain.FieldEstimatedSpend:    100.0,
		domain.FieldTimelineConfirmed: true,
	})
	require.NotNil(t, d.CompanyName)
	assert.Equal(t, "Acme", *d.CompanyName)
	require.NotNil(t, d.BuyerQuality)
	assert.Equal(t, 4, *d.BuyerQuality)
	assert.True(t, d.TimelineConfirmed)

	d.Apply(domain.FieldBuyerQuality, nil)
	assert.Nil(t, d.BuyerQuality)
}

func TestConfirmationRequiredIsValidation(t *testing.T) {
	var ve domain.ValidationError
	assert.True(t, errors.As(domain.ErrConfirmationRequired, &ve))
}

func TestPersistenceErrorUnwraps(t *testing.T) {
	base := errors.New("disk full")
	err := domain.PersistenceError{Op: "save draft", Err: base}
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "save draft: disk full", err.Error())
}

func TestNormalizeReason(t *testing.T) {
	r, err := domain.NormalizeReason("   \t ")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = domain.NormalizeReason("  budget frozen  ")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "budget frozen", *r)

	exact := strings.Repeat("é", domain.MaxReasonLength)
	r, err = domain.NormalizeReason(exact)
	require.NoError(t, err)
	assert.Equal(t, exact, *r)

	_, err = domain.NormalizeReason(exact + "x")
	assert.True(t, domain.IsValidation(err))
}

func TestStampSortsLexically(t *testing.T) {
	whole := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	frac := whole.Add(100 * time.Millisecond)
	assert.Less(t, domain.Stamp(whole), domain.Stamp(frac))
	assert.Equal(t, "2026-01-01T00:00:00.000000000Z", domain.Stamp(whole))
}

func TestResolve(t *testing.T) {
	sd := domain.ScoredDecision{LeadID: "l1", Score: 71, RecommendedAction: domain.ActionReview}

	d := domain.Resolve(sd, nil, domain.OutcomeRecord{})
	assert.Equal(t, domain.ActionReview, d.EffectiveAction)
	assert.Equal(t, domain.OutcomeStatusPending, d.OutcomeStatus)
	assert.False(t, d.IsOverridden)
	assert.Nil(t, d.LatestOverrideAction)
	assert.NotNil(t, d.PositiveReasons)

	reason := "champion left"
	latest := &domain.OverrideEvent{Action: domain.ActionKill, Reason: &reason, CreatedAt: "2026-01-02T00:00:00.000000000Z"}
	d = domain.Resolve(sd, latest, domain.OutcomeRecord{LatestOutcome: domain.OutcomeLost})
	assert.Equal(t, domain.ActionKill, d.EffectiveAction)
	assert.Equal(t, domain.ActionReview, d.RecommendedAction)
	assert.True(t, d.IsOverridden)
	assert.Equal(t, domain.OutcomeStatusLost, d.OutcomeStatus)
	require.NotNil(t, d.LatestOverrideReason)
	assert.Equal(t, reason, *d.LatestOverrideReason)

	same := &domain.OverrideEvent{Action: domain.ActionReview, CreatedAt: "2026-01-03T00:00:00.000000000Z"}
	d = domain.Resolve(sd, same, domain.OutcomeRecord{LatestOutcome: domain.OutcomeWon})
	assert.Equal(t, domain.ActionReview, d.EffectiveAction)
	assert.False(t, d.IsOverridden)
	require.NotNil(t, d.LatestOverrideAction)
	assert.Equal(t, domain.OutcomeStatusWon, d.OutcomeStatus)
}
