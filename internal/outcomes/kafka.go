package outcomes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"leadtriage/internal/domain"
)

// MessageReader is the subset of *kafka.Reader the ingestor needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaReader builds a consumer-group reader for the outcome topic.
func NewKafkaReader(brokers []string, topic, groupID string) (*kafka.Reader, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("outcome reader requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("outcome reader requires a topic")
	}
	if groupID == "" {
		return nil, fmt.Errorf("outcome reader requires group id")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: []string{topic},
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	}), nil
}

// Message is the wire shape published by the CRM outcome feed.
type Message struct {
	LeadID        string  `json:"lead_id"`
	LatestOutcome *string `json:"latest_outcome"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

// Ingestor copies outcome messages into a Store. Malformed messages are
// logged and committed so they cannot wedge the partition; store failures
// stop the loop without committing.
type Ingestor struct {
	Reader MessageReader
	Store  Store
	Logger *slog.Logger
	Now    func() time.Time
}

// Run consumes until ctx is cancelled or the store fails.
func (in Ingestor) Run(ctx context.Context) error {
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for {
		msg, err := in.Reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch outcome: %w", err)
		}
		rec, err := in.decode(msg.Value)
		if err != nil {
			logger.Warn("skipping outcome message", "partition", msg.Partition, "offset", msg.Offset, "err", err)
		} else if err := in.Store.UpsertOutcome(ctx, rec); err != nil {
			return fmt.Errorf("store outcome for lead %s: %w", rec.LeadID, err)
		} else {
			logger.Debug("outcome ingested", "lead_id", rec.LeadID, "outcome", string(rec.LatestOutcome))
		}
		if err := in.Reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit outcome offset: %w", err)
		}
	}
}

func (in Ingestor) decode(value []byte) (domain.OutcomeRecord, error) {
	var m Message
	if err := json.Unmarshal(value, &m); err != nil {
		return domain.OutcomeRecord{}, fmt.Errorf("decode outcome: %w", err)
	}
	m.LeadID = strings.TrimSpace(m.LeadID)
	if m.LeadID == "" {
		return domain.OutcomeRecord{}, domain.ValidationError{Field: "lead_id", Message: "required"}
	}
	rec := domain.OutcomeRecord{LeadID: m.LeadID, UpdatedAt: m.UpdatedAt}
	if m.LatestOutcome != nil {
		sig, err := domain.ParseOutcomeSignal(*m.LatestOutcome)
		if err != nil {
			return domain.OutcomeRecord{}, err
		}
		rec.LatestOutcome = sig
	}
	if rec.UpdatedAt == "" {
		now := time.Now
		if in.Now != nil {
			now = in.Now
		}
		rec.UpdatedAt = now().UTC().Format(time.RFC3339Nano)
	}
	return rec, nil
}
