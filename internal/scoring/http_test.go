package scoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"leadtriage/internal/domain"
)

func TestHTTPProviderScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/leads/lead-1/score":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"lead_id":"lead-1","score":82,"recommended_action":"pursue","positive_reasons":["budget confirmed"]}`))
		case "/leads/bad/score":
			w.Write([]byte(`{"score":1,"recommended_action":"escalate"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 0)
	sd, err := p.Score(context.Background(), "lead-1")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if sd.Score != 82 || sd.RecommendedAction != domain.ActionPursue {
		t.Fatalf("unexpected decision: %+v", sd)
	}
	if len(sd.PositiveReasons) != 1 || sd.NegativeReasons == nil {
		t.Fatalf("reasons not normalised: %+v", sd)
	}

	if _, err := p.Score(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := p.Score(context.Background(), "bad"); err == nil {
		t.Fatalf("expected unknown action to fail")
	}
}

func TestHTTPProviderConcurrentScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score":50,"recommended_action":"review"}`))
	}))
	defer srv.Close()

	// Built without a client, as a zero-value provider from config would be.
	p := &HTTPProvider{BaseURL: srv.URL}
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sd, err := p.Score(context.Background(), "lead-1")
			if err == nil && sd.RecommendedAction != domain.ActionReview {
				err = errors.New("unexpected action " + string(sd.RecommendedAction))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("score: %v", err)
		}
	}
	if p.HTTPClient != nil {
		t.Fatalf("Score must not replace the provider's client")
	}
}
