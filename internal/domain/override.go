package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxReasonLength bounds an override reason, counted in characters.
const MaxReasonLength = 280

// TimestampLayout is RFC3339 with fixed nanosecond width. Stored timestamps
// use it so that text ordering matches time ordering.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Stamp formats t in UTC with TimestampLayout.
func Stamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// NormalizeReason trims the reason. Whitespace-only becomes nil.
func NormalizeReason(raw string) (*string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	if n := utf8.RuneCountInString(s); n > MaxReasonLength {
		return nil, ValidationError{Field: "reason", Message: fmt.Sprintf("must be at most %d characters, got %d", MaxReasonLength, n)}
	}
	return &s, nil
}

// Resolve combines the three inputs of a decision. The latest override wins
// over the recommendation; IsOverridden is only set when it differs.
func Resolve(sd ScoredDecision, latest *OverrideEvent, outcome OutcomeRecord) EffectiveDecision {
	d := EffectiveDecision{
		LeadID:            sd.LeadID,
		Score:             sd.Score,
		RecommendedAction: sd.RecommendedAction,
		EffectiveAction:   sd.RecommendedAction,
		OutcomeStatus:     StatusFromOutcome(outcome.LatestOutcome),
		PositiveReasons:   sd.PositiveReasons,
		NegativeReasons:   sd.NegativeReasons,
	}
	if d.PositiveReasons == nil {
		d.PositiveReasons = []string{}
	}
	if d.NegativeReasons == nil {
		d.NegativeReasons = []string{}
	}
	if latest != nil {
		action := latest.Action
		createdAt := latest.CreatedAt
		d.EffectiveAction = action
		d.LatestOverrideAction = &action
		d.LatestOverrideReason = latest.Reason
		d.LatestOverrideCreatedAt = &createdAt
		d.IsOverridden = action != sd.RecommendedAction
	}
	return d
}
