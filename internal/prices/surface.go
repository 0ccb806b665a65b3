package prices

import (
	"context"
	"math"
	"sort"
)

// Surface maps market_id to an implied probability in [0,1]. It is an
// immutable snapshot; the zero value is an empty surface.
type Surface struct {
	prices map[string]float64
}

// NewSurface copies m. Entries outside [0,1] or NaN are treated as absent.
func NewSurface(m map[string]float64) Surface {
	out := make(map[string]float64, len(m))
	for id, p := range m {
		if math.IsNaN(p) || p < 0 || p > 1 {
			continue
		}
		out[id] = p
	}
	return Surface{prices: out}
}

// Get returns the price for id and whether one was observed.
func (s Surface) Get(id string) (float64, bool) {
	p, ok := s.prices[id]
	return p, ok
}

func (s Surface) Len() int { return len(s.prices) }

// MarketIDs returns the observed market ids in sorted order.
func (s Surface) MarketIDs() []string {
	ids := make([]string, 0, len(s.prices))
	for id := range s.prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Provider yields the latest known prices for a venue and date.
type Provider interface {
	LatestPrices(ctx context.Context, venue, date string) (Surface, error)
}

// Static serves a fixed surface regardless of venue and date.
type Static Surface

func (s Static) LatestPrices(context.Context, string, string) (Surface, error) {
	return Surface(s), nil
}
