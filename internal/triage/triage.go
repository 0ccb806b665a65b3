// Package triage routes low-confidence propositions to human review.
package triage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hetulpatel/surveillance/internal/proposition"
)

// DefaultThreshold is the confidence below which a proposition goes to review.
const DefaultThreshold = 0.6

// Status tracks a review item through the workflow.
type Status string

const (
	StatusPending   Status = "pending"
	StatusResolved  Status = "resolved"
	StatusDismissed Status = "dismissed"
)

// ParseStatus accepts the three workflow states.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusResolved, StatusDismissed:
		return st, nil
	default:
		return "", fmt.Errorf("triage: unknown status %q", s)
	}
}

// ReviewItem is one proposition awaiting a human decision.
type ReviewItem struct {
	ID         string            `json:"id"`
	MarketID   string            `json:"market_id"`
	Venue      string            `json:"venue,omitempty"`
	Title      string            `json:"title"`
	Kind       proposition.Kind  `json:"proposition_kind"`
	Confidence float64           `json:"confidence"`
	Level      proposition.Level `json:"confidence_level"`
	Reason     string            `json:"reason"`
	Status     Status            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Triage reports whether p needs review and, if so, why. Confidence equal to
// the threshold passes. p is not modified.
func Triage(p proposition.Proposition, threshold float64) (bool, string) {
	if p.Confidence >= threshold {
		return false, ""
	}
	return true, Reason(p, threshold)
}

// Reason summarizes why p fell below threshold.
func Reason(p proposition.Proposition, threshold float64) string {
	var parts []string
	if msg, ok := strings.CutPrefix(p.Reasoning, "extraction failed: "); ok {
		parts = append(parts, "extraction failed: "+msg)
	}
	if missing := p.MissingPriceFields(); len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	parts = append(parts, fmt.Sprintf("confidence %.2f below threshold %.2f", p.Confidence, threshold))
	return strings.Join(parts, "; ")
}

// ItemID is stable for a given market and rules version, so re-triaging the
// same proposition yields the same id and consumers can dedupe on it.
func ItemID(p proposition.Proposition) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("review:"+p.MarketID+":"+p.RulesHash)).String()
}

// NewItem builds a pending review item for p.
func NewItem(p proposition.Proposition, reason string, now time.Time) ReviewItem {
	return ReviewItem{
		ID:         ItemID(p),
		MarketID:   p.MarketID,
		Venue:      p.Venue,
		Title:      p.Title,
		Kind:       p.Kind,
		Confidence: p.Confidence,
		Level:      proposition.LevelOf(p.Confidence),
		Reason:     reason,
		Status:     StatusPending,
		CreatedAt:  now.UTC(),
	}
}

// Split partitions props into those that continue to constraint derivation
// and review items for the rest. Input order is kept on both sides.
func Split(props []proposition.Proposition, threshold float64, now time.Time) ([]proposition.Proposition, []ReviewItem) {
	var (
		pass   []proposition.Proposition
		review []ReviewItem
	)
	for _, p := range props {
		if low, reason := Triage(p, threshold); low {
			review = append(review, NewItem(p, reason, now))
			continue
		}
		pass = append(pass, p)
	}
	return pass, review
}

// Queue is an append-only review queue safe for concurrent use. Duplicate
// market_ids are kept; deduplication belongs to the consumer.
type Queue struct {
	mu    sync.Mutex
	items []ReviewItem
}

func (q *Queue) Append(items ...ReviewItem) {
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
}

// Items returns a copy of the queue contents.
func (q *Queue) Items() []ReviewItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]ReviewItem, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
