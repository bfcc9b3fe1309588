package domain

import (
	"fmt"
	"strings"
)

// Action is the closed set of triage recommendations shared by the scoring
// provider, the override ledger and drafts.
type Action string

const (
	ActionPursue       Action = "pursue"
	ActionReview       Action = "review"
	ActionDeprioritise Action = "deprioritise"
	ActionKill         Action = "kill"
)

// Actions lists every variant in display order.
var Actions = []Action{ActionPursue, ActionReview, ActionDeprioritise, ActionKill}

// ParseAction accepts the canonical lowercase names, ignoring surrounding
// whitespace and case.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", s)}
	}
	return a, nil
}

// Valid reports whether a is one of the four variants.
func (a Action) Valid() bool {
	switch a {
	case ActionPursue, ActionReview, ActionDeprioritise, ActionKill:
		return true
	}
	return false
}

func (a Action) String() string { return string(a) }

// Tone is the badge colour family used when presenting an action.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNeutral  Tone = "neutral"
	ToneCaution  Tone = "caution"
	ToneNegative Tone = "negative"
)

// Presentation holds every display attribute derived from an Action.
type Presentation struct {
	Label string `json:"label"`
	Tone  Tone   `json:"tone"`
	Rank  int    `json:"rank"`
}

// Present maps a variant to its display attributes. It panics on a value
// outside the closed set; callers parse input with ParseAction first.
func (a Action) Present() Presentation {
	switch a {
	case ActionPursue:
		return Presentation{Label: "Pursue", Tone: TonePositive, Rank: 0}
	case ActionReview:
		return Presentation{Label: "Review", Tone: ToneNeutral, Rank: 1}
	case ActionDeprioritise:
		return Presentation{Label: "Deprioritise", Tone: ToneCaution, Rank: 2}
	case ActionKill:
		return Presentation{Label: "Kill", Tone: ToneNegative, Rank: 3}
	}
	panic(fmt.Sprintf("domain: unhandled action %q", string(a)))
}
