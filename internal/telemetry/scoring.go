package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"leadtriage/internal/domain"
	"leadtriage/internal/scoring"
)

const scoringScopeName = "leadtriage/scoring"

// InstrumentedProvider traces and counts scoring lookups.
type InstrumentedProvider struct {
	inner  scoring.Provider
	tracer trace.Tracer
	calls  metric.Int64Counter
	dur    metric.Float64Histogram
	misses metric.Int64Counter
}

// WrapProvider returns p decorated with OTel instrumentation, or p itself
// when telemetry is disabled.
func WrapProvider(p scoring.Provider) scoring.Provider {
	if !Enabled() {
		return p
	}
	m := Meter(scoringScopeName)
	calls, _ := m.Int64Counter("triage.scoring.lookups",
		metric.WithDescription("Score lookups against the scoring provider"),
	)
	dur, _ := m.Float64Histogram("triage.scoring.lookup.duration",
		metric.WithDescription("Score lookup duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	misses, _ := m.Int64Counter("triage.scoring.misses",
		metric.WithDescription("Lookups for leads the scorer has not scored"),
	)
	return &InstrumentedProvider{inner: p, tracer: Tracer(scoringScopeName), calls: calls, dur: dur, misses: misses}
}

func (p *InstrumentedProvider) Score(ctx context.Context, leadID string) (domain.ScoredDecision, error) {
	ctx, span := p.tracer.Start(ctx, "scoring.score",
		trace.WithAttributes(attribute.String("lead.id", leadID)),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()
	start := time.Now()
	p.calls.Add(ctx, 1)

	sd, err := p.inner.Score(ctx, leadID)
	p.dur.Record(ctx, float64(time.Since(start).Milliseconds()))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		p.misses.Add(ctx, 1)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetAttributes(attribute.String("decision.recommended_action", string(sd.RecommendedAction)))
	}
	return sd, err
}

// FlushRecorder returns a hook for session.Options.OnFlush that counts draft
// saves, or nil when telemetry is disabled.
func FlushRecorder() func(ctx context.Context, fields int, err error) {
	if !Enabled() {
		return nil
	}
	m := Meter("leadtriage/session")
	flushes, _ := m.Int64Counter("triage.draft.flushes",
		metric.WithDescription("Draft save attempts by outcome"),
	)
	fieldCount, _ := m.Int64Counter("triage.draft.flush.fields",
		metric.WithDescription("Draft fields sent to storage"),
	)
	return func(ctx context.Context, fields int, err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		flushes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		fieldCount.Add(ctx, int64(fields))
	}
}
