package collectors

import (
	"context"
	"strings"
	"time"

	"github.com/hetulpatel/surveillance/internal/extraction"
	"github.com/hetulpatel/surveillance/internal/prices"
)

// Venue identifies the platform a market belongs to.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueKalshi     Venue = "kalshi"
)

// FetchOptions control how many items a collector fetches per call.
type FetchOptions struct {
	PageSize int
	// Books asks for top-of-book quotes where the venue needs a separate call.
	Books bool
}

// Collector is implemented by venue-specific clients. Each call returns one
// page of open markets and advances the client's cursor.
type Collector interface {
	Name() string
	Fetch(ctx context.Context, opts FetchOptions) ([]Market, error)
}

// Market is one tradable binary market with its rules text and top of book.
type Market struct {
	Venue            Venue
	EventID          string
	MarketID         string
	Title            string
	RulesText        string
	ResolutionSource string
	CloseTime        time.Time
	Outcomes         []Outcome
}

// Outcome is the top of book for one side of a market. Prices are
// probabilities in [0,1]; zero means no level was quoted.
type Outcome struct {
	ID      string
	BestBid float64
	BestAsk float64
}

// RulesRecord converts m into an extraction input.
func (m Market) RulesRecord(capturedAt time.Time) extraction.RulesRecord {
	text := strings.TrimSpace(m.RulesText)
	if src := strings.TrimSpace(m.ResolutionSource); src != "" && !strings.Contains(text, src) {
		text = strings.TrimSpace(text + "\nResolution source: " + src)
	}
	return extraction.RulesRecord{
		Venue:      string(m.Venue),
		MarketID:   m.MarketID,
		Title:      m.Title,
		RulesText:  text,
		CapturedAt: capturedAt.UTC(),
	}
}

// Quotes converts the outcomes of m into price quotes stamped at ts.
// Outcomes with neither side quoted are skipped.
func (m Market) Quotes(ts time.Time) []prices.Quote {
	out := make([]prices.Quote, 0, len(m.Outcomes))
	for _, o := range m.Outcomes {
		if o.BestBid <= 0 && o.BestAsk <= 0 {
			continue
		}
		q := prices.Quote{MarketID: m.MarketID, OutcomeID: o.ID, TsRecv: ts.UnixMilli()}
		if o.BestBid > 0 {
			q.BestBid = ptr(o.BestBid)
		}
		if o.BestAsk > 0 {
			q.BestAsk = ptr(o.BestAsk)
		}
		if q.BestBid != nil && q.BestAsk != nil {
			q.Mid = ptr((o.BestBid + o.BestAsk) / 2)
		}
		out = append(out, q)
	}
	return out
}

// Batch splits markets into rules records and quotes, dropping markets
// without rules text from the former.
func Batch(markets []Market, ts time.Time) ([]extraction.RulesRecord, []prices.Quote) {
	var (
		records []extraction.RulesRecord
		quotes  []prices.Quote
	)
	for _, m := range markets {
		if m.MarketID == "" {
			continue
		}
		if rec := m.RulesRecord(ts); rec.RulesText != "" {
			records = append(records, rec)
		}
		quotes = append(quotes, m.Quotes(ts)...)
	}
	return records, quotes
}

func ptr(v float64) *float64 { return &v }
