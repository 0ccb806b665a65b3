package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hetulpatel/surveillance/internal/extraction"
	"github.com/hetulpatel/surveillance/internal/proposition"
	"github.com/hetulpatel/surveillance/internal/triage"
)

// ReviewSink receives review items as they are triaged.
type ReviewSink interface {
	AppendReview(ctx context.Context, items []triage.ReviewItem) error
}

// Processor extracts a rules record, stores the proposition and queues it
// for review when its confidence is too low.
type Processor struct {
	service   *extraction.Service
	store     proposition.Store
	review    ReviewSink
	threshold float64
}

func NewProcessor(service *extraction.Service, store proposition.Store, review ReviewSink, threshold float64) *Processor {
	return &Processor{service: service, store: store, review: review, threshold: threshold}
}

func (p *Processor) Handle(ctx context.Context, rec extraction.RulesRecord) error {
	out := p.service.Extract(ctx, rec)
	if out.Err != nil && ctx.Err() != nil {
		// A cancelled extraction says nothing about the rules; keep what is stored.
		return fmt.Errorf("extract %s: %w", rec.MarketID, ctx.Err())
	}
	prop := out.Proposition()
	if err := p.store.Put(ctx, prop); err != nil {
		return fmt.Errorf("store proposition %s: %w", rec.MarketID, err)
	}

	low, reason := triage.Triage(prop, p.threshold)
	if !low || p.review == nil {
		return nil
	}
	item := triage.NewItem(prop, reason, time.Now())
	if err := p.review.AppendReview(ctx, []triage.ReviewItem{item}); err != nil {
		return fmt.Errorf("queue review %s: %w", rec.MarketID, err)
	}
	return nil
}
