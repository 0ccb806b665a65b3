package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/surveillance/internal/detect"
	"github.com/hetulpatel/surveillance/internal/engine"
	"github.com/hetulpatel/surveillance/internal/extraction"
	"github.com/hetulpatel/surveillance/internal/triage"
)

// MessageWriter is the part of *kafka.Writer the publishers use.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ViolationRecord is the wire form of a violation.
type ViolationRecord struct {
	Venue string `json:"venue,omitempty"`
	Date  string `json:"date,omitempty"`
	detect.Violation
}

// PublishViolations writes one message per violation keyed by constraint id,
// so a constraint's history lands on one partition.
func PublishViolations(ctx context.Context, writer MessageWriter, venue, date string, vs []detect.Violation) error {
	if writer == nil || len(vs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(vs))
	for _, v := range vs {
		payload, err := json.Marshal(ViolationRecord{Venue: venue, Date: date, Violation: v})
		if err != nil {
			return fmt.Errorf("marshal violation %s: %w", v.ConstraintID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(v.ConstraintID), Value: payload})
	}
	return writer.WriteMessages(ctx, msgs...)
}

// PublishReviewItems writes one message per item keyed by market id.
func PublishReviewItems(ctx context.Context, writer MessageWriter, items []triage.ReviewItem) error {
	if writer == nil || len(items) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(items))
	for _, it := range items {
		payload, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("marshal review item %s: %w", it.MarketID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(it.MarketID), Value: payload})
	}
	return writer.WriteMessages(ctx, msgs...)
}

// PublishRules feeds rules records to the extraction workers, keyed by
// extraction key so duplicates share a partition.
func PublishRules(ctx context.Context, writer MessageWriter, records []extraction.RulesRecord) error {
	if writer == nil || len(records) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal rules %s: %w", rec.MarketID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(rec.Key()), Value: payload})
	}
	return writer.WriteMessages(ctx, msgs...)
}

// Sink publishes pass results to the violations and review topics.
type Sink struct {
	Violations MessageWriter
	Review     MessageWriter
}

var _ engine.Sink = Sink{}

func (s Sink) Emit(ctx context.Context, res engine.PassResult) error {
	if err := PublishViolations(ctx, s.Violations, res.Summary.Venue, res.Summary.Date, res.Violations); err != nil {
		return fmt.Errorf("queue: violations: %w", err)
	}
	if err := PublishReviewItems(ctx, s.Review, res.ReviewDelta); err != nil {
		return fmt.Errorf("queue: review: %w", err)
	}
	return nil
}
