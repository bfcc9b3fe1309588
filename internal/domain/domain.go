package domain

// Lead is a canonical sales opportunity. Scoring inputs are owned by the
// external provider; the core only reads them back for display.
type Lead struct {
	ID                   string   `json:"id"`
	CompanyName          string   `json:"company_name"`
	ContactName          *string  `json:"contact_name,omitempty"`
	Email                *string  `json:"email,omitempty"`
	Phone                *string  `json:"phone,omitempty"`
	EstimatedSpend       *float64 `json:"estimated_spend,omitempty"`
	Source               *string  `json:"source,omitempty"`
	BuyerQuality         *int     `json:"buyer_quality,omitempty"`
	CompanyFit           *int     `json:"company_fit,omitempty"`
	Urgency              *int     `json:"urgency,omitempty"`
	Engagement           *int     `json:"engagement,omitempty"`
	DealSizeFit          *int     `json:"deal_size_fit,omitempty"`
	DecisionMakerEngaged bool     `json:"decision_maker_engaged"`
	BudgetConfirmed      bool     `json:"budget_confirmed"`
	TimelineConfirmed    bool     `json:"timeline_confirmed"`
	DraftID              *string  `json:"draft_id,omitempty"`
	CreatedAt            string   `json:"created_at" format:"date-time"`
}

// ScoredDecision is the read-only output of the scoring provider.
type ScoredDecision struct {
	LeadID            string   `json:"lead_id"`
	Score             int      `json:"score"`
	RecommendedAction Action   `json:"recommended_action" enum:"pursue,review,deprioritise,kill"`
	PositiveReasons   []string `json:"positive_reasons"`
	NegativeReasons   []string `json:"negative_reasons"`
}

// OverrideEvent is one immutable ledger row. Seq is assigned by storage and
// breaks ties between events sharing a CreatedAt value.
type OverrideEvent struct {
	ID        string  `json:"id"`
	Seq       int64   `json:"seq"`
	LeadID    string  `json:"lead_id"`
	Action    Action  `json:"action" enum:"pursue,review,deprioritise,kill"`
	Reason    *string `json:"reason"`
	ActorID   string  `json:"actor_id,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

// OutcomeRecord is the per-lead signal from the outcome feed.
type OutcomeRecord struct {
	LeadID        string        `json:"lead_id"`
	LatestOutcome OutcomeSignal `json:"latest_outcome,omitempty"`
	UpdatedAt     string        `json:"updated_at,omitempty"`
}

// EffectiveDecision is computed on every read and never persisted.
type EffectiveDecision struct {
	LeadID                  string        `json:"lead_id"`
	Score                   int           `json:"score"`
	RecommendedAction       Action        `json:"recommended_action"`
	EffectiveAction         Action        `json:"effective_action"`
	LatestOverrideAction    *Action       `json:"latest_override_action"`
	LatestOverrideReason    *string       `json:"latest_override_reason"`
	LatestOverrideCreatedAt *string       `json:"latest_override_created_at"`
	OutcomeStatus           OutcomeStatus `json:"outcome_status" enum:"won,lost,pending"`
	IsOverridden            bool          `json:"is_overridden"`
	PositiveReasons         []string      `json:"positive_reasons"`
	NegativeReasons         []string      `json:"negative_reasons"`
}

// DraftStatus is the lifecycle state of a LeadDraft.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusCommitted DraftStatus = "committed"
	DraftStatusArchived  DraftStatus = "archived"
)

// LeadDraft is a mutable staging record. Field values are only written while
// Status is draft.
type LeadDraft struct {
	ID                   string      `json:"id"`
	Status               DraftStatus `json:"status" enum:"draft,committed,archived"`
	CommittedLeadID      *string     `json:"committed_lead_id"`
	CommittedAt          *string     `json:"committed_at" format:"date-time"`
	CompanyName          *string     `json:"company_name"`
	ContactName          *string     `json:"contact_name"`
	Email                *string     `json:"email"`
	Phone                *string     `json:"phone"`
	EstimatedSpend       *float64    `json:"estimated_spend"`
	Source               *string     `json:"source"`
	BuyerQuality         *int        `json:"buyer_quality"`
	CompanyFit           *int        `json:"company_fit"`
	Urgency              *int        `json:"urgency"`
	Engagement           *int        `json:"engagement"`
	DealSizeFit          *int        `json:"deal_size_fit"`
	DecisionMakerEngaged bool        `json:"decision_maker_engaged"`
	BudgetConfirmed      bool        `json:"budget_confirmed"`
	TimelineConfirmed    bool        `json:"timeline_confirmed"`
	Score                *int        `json:"score"`
	RecommendedAction    *Action     `json:"recommended_action"`
	PositiveReasons      []string    `json:"positive_reasons"`
	NegativeReasons      []string    `json:"negative_reasons"`
	CreatedAt            string      `json:"created_at" format:"date-time"`
	UpdatedAt            string      `json:"updated_at" format:"date-time"`
}

// Editable reports whether field writes are still allowed.
func (d LeadDraft) Editable() bool {
	return d.Status == DraftStatusDraft
}

// Event is a row of the audit log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
