package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadtriage/internal/domain"
)

type stubProvider struct {
	sd  domain.ScoredDecision
	err error
}

func (s stubProvider) Score(ctx context.Context, leadID string) (domain.ScoredDecision, error) {
	return s.sd, s.err
}

func TestDisabledReturnsInputs(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Init(ctx, Options{}, "leadtriage", "test"))
	defer Shutdown(ctx)

	p := stubProvider{}
	assert.Equal(t, p, WrapProvider(p))
	assert.Nil(t, FlushRecorder())
}

func TestInstrumentedProviderPassesThrough(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Init(ctx, Options{Enabled: true}, "leadtriage", "test"))
	defer Shutdown(ctx)

	want := domain.ScoredDecision{LeadID: "l1", Score: 90, RecommendedAction: domain.ActionPursue}
	p := WrapProvider(stubProvider{sd: want})
	_, ok := p.(*InstrumentedProvider)
	require.True(t, ok)

	got, err := p.Score(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = WrapProvider(stubProvider{err: domain.ErrNotFound}).Score(ctx, "l2")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	rec := FlushRecorder()
	require.NotNil(t, rec)
	rec(ctx, 3, nil)
}
