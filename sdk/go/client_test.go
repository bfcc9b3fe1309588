package triagesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverrideSendsActorAndReason(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/leads/lead-1/overrides", r.URL.Path)
		assert.Equal(t, "rep-1", r.Header.Get("X-Actor-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ov-1","lead_id":"lead-1","action":"kill","reason":"lost","actor_id":"rep-1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.ActorID = "rep-1"
	ov, err := c.Override(context.Background(), "lead-1", "kill", "lost")
	require.NoError(t, err)
	assert.Equal(t, "ov-1", ov.ID)
	assert.Equal(t, map[string]any{"action": "kill", "reason": "lost"}, got)
}

func TestAPIErrorDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"not_editable","message":"draft is not editable"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).SetDraftFields(context.Background(), "d-1", map[string]string{"phone": "1"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "not_editable", apiErr.Code)
}

func TestEventsPageQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "12", r.URL.Query().Get("cursor"))
		_, _ = w.Write([]byte(`{"items":[{"id":11,"type":"lead.created"}],"next_cursor":"11"}`))
	}))
	defer srv.Close()

	page, err := New(srv.URL).EventsPage(context.Background(), 5, "12")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "11", page.NextCursor)
}
