package extraction

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Stats counts how a batch was resolved.
type Stats struct {
	Total        int `json:"total"`
	CacheHits    int `json:"cache_hits"`
	Extracted    int `json:"extracted"`
	Failed       int `json:"failed"`
	CacheCorrupt int `json:"cache_corrupt"`
}

// Tally summarizes outcomes.
func Tally(outcomes []Outcome) Stats {
	st := Stats{Total: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.CacheHit:
			st.CacheHits++
		case o.Err != nil:
			st.Failed++
		default:
			st.Extracted++
		}
		if o.CacheCorrupt {
			st.CacheCorrupt++
		}
	}
	return st
}

// ExtractAll resolves records with at most workers extractions in flight.
// Outcomes are returned in input order. The only error is ctx cancellation.
func (s *Service) ExtractAll(ctx context.Context, records []RulesRecord, workers int) ([]Outcome, error) {
	if workers <= 0 {
		workers = 1
	}
	outcomes := make([]Outcome, len(records))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, rec := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = s.Extract(ctx, rec)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
