package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadtriage/internal/domain"
)

// HTTPProvider queries a remote scorer at GET {BaseURL}/leads/{id}/score.
type HTTPProvider struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a provider with a 10s default timeout.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: timeout}, Timeout: timeout}
}

// client never writes to p; Score is called concurrently.
func (p *HTTPProvider) client() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return &http.Client{Timeout: p.Timeout}
}

type scoreResponse struct {
	LeadID            string   `json:"lead_id"`
	Score             int      `json:"score"`
	RecommendedAction string   `json:"recommended_action"`
	PositiveReasons   []string `json:"positive_reasons"`
	NegativeReasons   []string `json:"negative_reasons"`
}

func (p *HTTPProvider) Score(ctx context.Context, leadID string) (domain.ScoredDecision, error) {
	endpoint := fmt.Sprintf("%s/leads/%s/score", strings.TrimRight(p.BaseURL, "/"), url.PathEscape(leadID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.ScoredDecision{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.client().Do(req)
	if err != nil {
		return domain.ScoredDecision{}, fmt.Errorf("scoring request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return domain.ScoredDecision{}, fmt.Errorf("score for lead %s: %w", leadID, domain.ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.ScoredDecision{}, fmt.Errorf("scoring status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var body scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.ScoredDecision{}, fmt.Errorf("decode score: %w", err)
	}
	action, err := domain.ParseAction(body.RecommendedAction)
	if err != nil {
		return domain.ScoredDecision{}, fmt.Errorf("lead %s: scorer returned %w", leadID, err)
	}
	sd := domain.ScoredDecision{
		LeadID:            leadID,
		Score:             body.Score,
		RecommendedAction: action,
		PositiveReasons:   body.PositiveReasons,
		NegativeReasons:   body.NegativeReasons,
	}
	if sd.PositiveReasons == nil {
		sd.PositiveReasons = []string{}
	}
	if sd.NegativeReasons == nil {
		sd.NegativeReasons = []string{}
	}
	return sd, nil
}
