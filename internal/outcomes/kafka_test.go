package outcomes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadtriage/internal/domain"
)

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type memStore struct {
	recs map[string]domain.OutcomeRecord
	err  error
}

func (s *memStore) UpsertOutcome(ctx context.Context, rec domain.OutcomeRecord) error {
	if s.err != nil {
		return s.err
	}
	s.recs[rec.LeadID] = rec
	return nil
}

func fixedNow() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestIngestorAppliesMessages(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"lead_id":"a","latest_outcome":"won"}`)},
		{Offset: 2, Value: []byte(`{"lead_id":"b","latest_outcome":"no_response","updated_at":"2026-02-01T00:00:00Z"}`)},
		{Offset: 3, Value: []byte(`not json`)},
		{Offset: 4, Value: []byte(`{"lead_id":"c","latest_outcome":"maybe"}`)},
		{Offset: 5, Value: []byte(`{"lead_id":"a","latest_outcome":null}`)},
	}}
	store := &memStore{recs: map[string]domain.OutcomeRecord{}}
	in := Ingestor{Reader: reader, Store: store, Now: fixedNow}

	require.NoError(t, in.Run(context.Background()))

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, reader.committed)
	require.Len(t, store.recs, 2)
	assert.Equal(t, domain.OutcomeNone, store.recs["a"].LatestOutcome)
	assert.Equal(t, fixedNow().Format(time.RFC3339Nano), store.recs["a"].UpdatedAt)
	assert.Equal(t, domain.OutcomeNoResponse, store.recs["b"].LatestOutcome)
	assert.Equal(t, "2026-02-01T00:00:00Z", store.recs["b"].UpdatedAt)
	assert.Equal(t, domain.OutcomeStatusPending, domain.StatusFromOutcome(store.recs["b"].LatestOutcome))
}

func TestIngestorStopsOnStoreFailure(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 7, Value: []byte(`{"lead_id":"a","latest_outcome":"lost"}`)},
	}}
	store := &memStore{recs: map[string]domain.OutcomeRecord{}, err: errors.New("disk full")}
	in := Ingestor{Reader: reader, Store: store}

	err := in.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, reader.committed)
}

func TestNewKafkaReaderValidates(t *testing.T) {
	_, err := NewKafkaReader(nil, "outcomes", "triage")
	assert.Error(t, err)
	_, err = NewKafkaReader([]string{"localhost:9092"}, "", "triage")
	assert.Error(t, err)
	_, err = NewKafkaReader([]string{"localhost:9092"}, "outcomes", "")
	assert.Error(t, err)
}
