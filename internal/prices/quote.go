// Package prices turns order-book snapshots into the read-only price surface
// a detection pass evaluates against.
package prices

import (
	"math"
	"sort"
	"strings"
)

// Quote is the top of book for one market outcome at one instant. Absent
// fields are nil.
type Quote struct {
	MarketID  string   `json:"market_id"`
	OutcomeID string   `json:"outcome_id,omitempty"`
	TsRecv    int64    `json:"ts_recv"`
	Mid       *float64 `json:"mid,omitempty"`
	BestBid   *float64 `json:"best_bid_px,omitempty"`
	BestAsk   *float64 `json:"best_ask_px,omitempty"`
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

// ImpliedProbability prefers the mid, then the bid/ask midpoint. Values in
// (1,100] are read as cents.
func (q Quote) ImpliedProbability() (float64, bool) {
	if mid, ok := finite(q.Mid); ok && mid >= 0 && mid <= 1 {
		return mid, true
	}
	bid, okBid := finite(q.BestBid)
	ask, okAsk := finite(q.BestAsk)
	if !okBid || !okAsk {
		return 0, false
	}
	mid := (bid + ask) / 2
	switch {
	case mid >= 0 && mid <= 1:
		return mid, true
	case mid > 1 && mid <= 100:
		return mid / 100, true
	default:
		return 0, false
	}
}

// primaryOutcome reports whether outcome is the YES leg of a market.
func primaryOutcome(outcome string) bool {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "", "0", "yes":
		return true
	default:
		return false
	}
}

// FromQuotes builds a surface from raw quotes. For each market and outcome
// the latest ts_recv wins; each market then takes its YES leg, or the
// lowest-sorting outcome when no YES leg was seen. Quotes with no usable
// probability are ignored.
func FromQuotes(quotes []Quote) Surface {
	type key struct{ market, outcome string }
	latest := make(map[key]Quote)
	for _, q := range quotes {
		if q.MarketID == "" {
			continue
		}
		if _, ok := q.ImpliedProbability(); !ok {
			continue
		}
		k := key{q.MarketID, q.OutcomeID}
		if prev, ok := latest[k]; ok && q.TsRecv <= prev.TsRecv {
			continue
		}
		latest[k] = q
	}

	byMarket := make(map[string][]Quote)
	for _, q := range latest {
		byMarket[q.MarketID] = append(byMarket[q.MarketID], q)
	}
	out := make(map[string]float64, len(byMarket))
	for id, qs := range byMarket {
		sort.Slice(qs, func(i, j int) bool {
			pi, pj := primaryOutcome(qs[i].OutcomeID), primaryOutcome(qs[j].OutcomeID)
			if pi != pj {
				return pi
			}
			return qs[i].OutcomeID < qs[j].OutcomeID
		})
		p, _ := qs[0].ImpliedProbability()
		out[id] = p
	}
	return Surface{prices: out}
}
