package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/surveillance/internal/constraint"
	"github.com/hetulpatel/surveillance/internal/detect"
	"github.com/hetulpatel/surveillance/internal/engine"
	"github.com/hetulpatel/surveillance/internal/prices"
	"github.com/hetulpatel/surveillance/internal/proposition"
	"github.com/hetulpatel/surveillance/internal/triage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.CreateTables(context.Background()))
	return st
}

func TestPropositionRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	p := proposition.Proposition{
		MarketID:   "m1",
		Venue:      "polymarket",
		Title:      "BTC above 100k",
		Kind:       proposition.KindPriceTarget,
		Underlier:  "BTC",
		Strike:     proposition.Float(100000),
		Comparator: proposition.Comp(proposition.CompGTE),
		WindowEnd:  &end,
		Confidence: 0.9,
		RulesHash:  "abc",
	}
	require.NoError(t, st.Put(ctx, p))
	got, err := st.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.Confidence = 0.5
	p.Strike = nil
	require.NoError(t, st.Put(ctx, p))
	got, err = st.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Confidence)
	assert.Nil(t, got.Strike)

	_, err = st.Get(ctx, "missing")
	assert.ErrorIs(t, err, proposition.ErrNotFound)
	assert.ErrorIs(t, st.Put(ctx, proposition.Proposition{}), proposition.ErrEmptyMarketID)
}

func TestAllIsRestartable(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.PutAll(ctx, []proposition.Proposition{
		{MarketID: "a", Kind: proposition.KindOther},
		{MarketID: "b", Kind: proposition.KindElection},
	}))
	seq := st.All(ctx)
	assert.Len(t, proposition.Collect(seq), 2)
	assert.Len(t, proposition.Collect(seq), 2)

	props, err := proposition.CollectErr(st.Propositions(ctx))
	require.NoError(t, err)
	assert.Len(t, props, 2)
}

func TestPropositionsReportsReadFailure(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, proposition.Proposition{MarketID: "a", Kind: proposition.KindOther}))
	require.NoError(t, st.Close())

	props, err := proposition.CollectErr(st.Propositions(ctx))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list propositions")
	assert.Nil(t, props)
	assert.Empty(t, proposition.Collect(st.All(ctx)))
}

func TestReviewWorkflow(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	p := proposition.Proposition{MarketID: "m", Title: "t", Confidence: 0.2}
	item := triage.NewItem(p, triage.Reason(p, 0.6), time.Now())
	require.NoError(t, st.AppendReview(ctx, []triage.ReviewItem{item}))

	require.NoError(t, st.SetStatus(ctx, "m", triage.StatusResolved))
	// Re-triage keeps the reviewer's decision.
	require.NoError(t, st.AppendReview(ctx, []triage.ReviewItem{item}))

	items, err := st.ListReview(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, triage.StatusResolved, items[0].Status)

	pending, err := st.ListReview(ctx, triage.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, st.SetStatus(ctx, "nope", triage.StatusDismissed), proposition.ErrNotFound)
	assert.Error(t, st.SetStatus(ctx, "m", "closed"))
}

func TestEmitAndListViolations(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	res := engine.PassResult{
		Violations: []detect.Violation{{
			ConstraintID:       "c1",
			ConstraintType:     constraint.ExhaustivePartition,
			Group:              "fed",
			MarketIDs:          []string{"a", "b"},
			Expected:           1,
			Actual:             0.9,
			Magnitude:          0.1,
			Tolerance:          0.05,
			Severity:           detect.SeverityMedium,
			ArbitrageDirection: detect.BuyAll,
		}},
		Summary: engine.Summary{Venue: "polymarket", Date: "2025-01-01", GeneratedAt: time.Now()},
	}
	require.NoError(t, st.Emit(ctx, res))
	got, err := st.ListViolations(ctx, "polymarket", "2025-01-01")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, res.Violations[0], got[0])
}

func TestQuotesFeedSurface(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	f := func(v float64) *float64 { return &v }
	require.NoError(t, st.InsertQuotes(ctx, "kalshi", "2025-01-01", []prices.Quote{
		{MarketID: "m", OutcomeID: "0", TsRecv: 1, Mid: f(0.2)},
		{MarketID: "m", OutcomeID: "0", TsRecv: 2, BestBid: f(30), BestAsk: f(34)},
	}))
	s, err := st.LatestPrices(ctx, "kalshi", "2025-01-01")
	require.NoError(t, err)
	p, ok := s.Get("m")
	require.True(t, ok)
	assert.InDelta(t, 0.32, p, 1e-9)

	s, err = st.LatestPrices(ctx, "kalshi", "2025-01-02")
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}

func TestClearAndDropTables(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, proposition.Proposition{MarketID: "a"}))
	require.NoError(t, st.ClearTables(ctx))
	assert.Empty(t, proposition.Collect(st.All(ctx)))
	require.NoError(t, st.DropTables(ctx))
	require.NoError(t, st.CreateTables(ctx))
}
