package domain

import (
	"fmt"
	"strings"
)

// OutcomeSignal is the raw value carried by the outcome feed. The empty
// value stands for null.
type OutcomeSignal string

const (
	OutcomeNone       OutcomeSignal = ""
	OutcomeWon        OutcomeSignal = "won"
	OutcomeLost       OutcomeSignal = "lost"
	OutcomeNoResponse OutcomeSignal = "no_response"
)

// ParseOutcomeSignal accepts won, lost, no_response and blank/null.
func ParseOutcomeSignal(s string) (OutcomeSignal, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch OutcomeSignal(v) {
	case OutcomeWon, OutcomeLost, OutcomeNoResponse:
		return OutcomeSignal(v), nil
	}
	if v == "" || v == "null" {
		return OutcomeNone, nil
	}
	return "", ValidationError{Field: "latest_outcome", Message: fmt.Sprintf("unknown outcome %q", s)}
}

// OutcomeStatus is the coarse result shown for a lead.
type OutcomeStatus string

const (
	OutcomeStatusWon     OutcomeStatus = "won"
	OutcomeStatusLost    OutcomeStatus = "lost"
	OutcomeStatusPending OutcomeStatus = "pending"
)

// StatusFromOutcome collapses no_response and null into pending.
func StatusFromOutcome(s OutcomeSignal) OutcomeStatus {
	switch s {
	case OutcomeWon:
		return OutcomeStatusWon
	case OutcomeLost:
		return OutcomeStatusLost
	default:
		return OutcomeStatusPending
	}
}
