package triagesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Lead Triage HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	ActorID     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Lead represents the API lead model (partial).
type Lead struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
	CreatedAt   string `json:"created_at"`
}

// Decision is the resolved recommendation for a lead.
type Decision struct {
	LeadID               string   `json:"lead_id"`
	Score                int      `json:"score"`
	RecommendedAction    string   `json:"recommended_action"`
	EffectiveAction      string   `json:"effective_action"`
	LatestOverrideAction *string  `json:"latest_override_action"`
	LatestOverrideReason *string  `json:"latest_override_reason"`
	OutcomeStatus        string   `json:"outcome_status"`
	IsOverridden         bool     `json:"is_overridden"`
	PositiveReasons      []string `json:"positive_reasons"`
	NegativeReasons      []string `json:"negative_reasons"`
}

// Override is one entry of a lead's override ledger.
type Override struct {
	ID        string  `json:"id"`
	LeadID    string  `json:"lead_id"`
	Action    string  `json:"action"`
	Reason    *string `json:"reason"`
	ActorID   string  `json:"actor_id,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// Draft represents a staging record with any unsaved fields.
type Draft struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	CompanyName     *string  `json:"company_name"`
	CommittedLeadID *string  `json:"committed_lead_id"`
	Pending         []string `json:"pending"`
	LastError       string   `json:"last_error,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateLead creates a lead directly from form values.
func (c *Client) CreateLead(ctx context.Context, fields map[string]string) (Lead, error) {
	var resp Lead
	err := c.do(ctx, http.MethodPost, "leads", map[string]any{"fields": fields}, &resp)
	return resp, err
}

// Decision resolves the effective decision for a lead.
func (c *Client) Decision(ctx context.Context, leadID string) (Decision, error) {
	var resp Decision
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("leads/%s/decision", url.PathEscape(leadID)), nil, &resp)
	return resp, err
}

// Override appends an override. An empty reason is sent as absent.
func (c *Client) Override(ctx context.Context, leadID, action, reason string) (Override, error) {
	body := map[string]any{"action": action}
	if reason != "" {
		body["reason"] = reason
	}
	var resp Override
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("leads/%s/overrides", url.PathEscape(leadID)), body, &resp)
	return resp, err
}

// Overrides returns a lead's override history, newest first.
func (c *Client) Overrides(ctx context.Context, leadID string) ([]Override, error) {
	var resp []Override
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("leads/%s/overrides", url.PathEscape(leadID)), nil, &resp)
	return resp, err
}

// CreateDraft creates a draft pre-filled with fields.
func (c *Client) CreateDraft(ctx context.Context, fields map[string]string) (Draft, error) {
	var resp Draft
	err := c.do(ctx, http.MethodPost, "drafts", map[string]any{"fields": fields}, &resp)
	return resp, err
}

// SetDraftFields edits draft fields. The server saves them after a quiet period.
func (c *Client) SetDraftFields(ctx context.Context, draftID string, fields map[string]string) (Draft, error) {
	var resp Draft
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("drafts/%s/fields", url.PathEscape(draftID)), map[string]any{"fields": fields}, &resp)
	return resp, err
}

// CommitDrafts converts drafts into leads in one transaction.
func (c *Client) CommitDrafts(ctx context.Context, ids []string) ([]Lead, error) {
	var resp struct {
		Leads []Lead `json:"leads"`
	}
	err := c.do(ctx, http.MethodPost, "drafts/commit", map[string]any{"ids": ids}, &resp)
	return resp.Leads, err
}

// DeleteDrafts removes drafts. confirm must be true or the server refuses.
func (c *Client) DeleteDrafts(ctx context.Context, ids []string, confirm bool) error {
	return c.do(ctx, http.MethodPost, "drafts/delete", map[string]any{"ids": ids, "confirm": confirm}, nil)
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
