package server

import (
	"encoding/json"

	"leadtriage/internal/domain"
	"leadtriage/internal/engine"
	"leadtriage/internal/session"
)

// Request payloads

// FieldsRequest carries raw form values keyed by draft field name. Values
// are coerced server-side.
type FieldsRequest struct {
	Fields map[string]string `json:"fields,omitempty"`
}

type CreateOverrideRequest struct {
	Action string  `json:"action" example:"kill"`
	Reason *string `json:"reason,omitempty" maxLength:"2000"`
}

type DraftSelectionRequest struct {
	IDs []string `json:"ids"`
}

type DeleteDraftsRequest struct {
	IDs     []string `json:"ids"`
	Confirm bool     `json:"confirm,omitempty"`
}

// Responses

type DraftResponse struct {
	domain.LeadDraft
	Pending   []string `json:"pending"`
	LastError string   `json:"last_error,omitempty"`
}

type LatestOverrideResponse struct {
	Override *domain.OverrideEvent `json:"override"`
}

type CommitResponse struct {
	Leads []domain.Lead `json:"leads"`
}

type DeleteResponse struct {
	Deleted []string `json:"deleted"`
}

type DecisionListResponse struct {
	Items []engine.DecisionEntry `json:"items"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func draftResponse(d domain.LeadDraft) DraftResponse {
	d.PositiveReasons = nonNilSlice(d.PositiveReasons)
	d.NegativeReasons = nonNilSlice(d.NegativeReasons)
	return DraftResponse{LeadDraft: d, Pending: []string{}}
}

// overlayResponse applies the session's unsaved edits to a stored draft.
// Scores and status always come from storage.
func overlayResponse(d domain.LeadDraft, s session.Snapshot) DraftResponse {
	d.ApplyPatch(s.Patch)
	resp := draftResponse(d)
	for _, f := range s.Pending {
		resp.Pending = append(resp.Pending, string(f))
	}
	resp.LastError = s.LastError
	return resp
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
