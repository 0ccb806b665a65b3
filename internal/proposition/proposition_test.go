package proposition

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseComparator(t *testing.T) {
	cases := map[string]Comparator{
		"gte": CompGTE, ">=": CompGTE, "above": CompGTE,
		"LTE": CompLTE, "<": CompLT, "gt": CompGT, "eq": CompEQ,
	}
	for in, want := range cases {
		got, ok := ParseComparator(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseComparator("between")
	assert.False(t, ok)
	assert.True(t, CompGT.Upward())
	assert.True(t, CompLTE.Downward())
	assert.False(t, CompEQ.Upward() || CompEQ.Downward())
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindPriceTarget, ParseKind("Price_Target"))
	assert.Equal(t, KindOther, ParseKind("weather"))
}

func TestMissingPriceFields(t *testing.T) {
	p := Proposition{MarketID: "m", Kind: KindPriceTarget, Underlier: "BTC"}
	assert.Equal(t, []string{"strike", "comparator"}, p.MissingPriceFields())
	assert.False(t, p.IsCompletePriceTarget())

	p.Strike = Float(100000)
	p.Comparator = Comp(CompGTE)
	assert.Empty(t, p.MissingPriceFields())
	assert.True(t, p.IsCompletePriceTarget())

	assert.Nil(t, Proposition{Kind: KindElection}.MissingPriceFields())
}

func TestLevelOf(t *testing.T) {
	assert.Equal(t, LevelHigh, LevelOf(0.9))
	assert.Equal(t, LevelMedium, LevelOf(0.6))
	assert.Equal(t, LevelLow, LevelOf(0.5))
	assert.Equal(t, LevelVeryLow, LevelOf(0.1))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(math.NaN()))
	assert.Equal(t, 0.0, ClampConfidence(-1))
	assert.Equal(t, 1.0, ClampConfidence(3))
	assert.Equal(t, 0.4, ClampConfidence(0.4))
}

func TestMemoryStoreLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.ErrorIs(t, s.Put(ctx, Proposition{}), ErrEmptyMarketID)
	require.NoError(t, s.Put(ctx, Proposition{MarketID: "a", Title: "first"}))
	require.NoError(t, s.Put(ctx, Proposition{MarketID: "a", Title: "second"}))
	require.NoError(t, s.Put(ctx, Proposition{MarketID: "b"}))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Title)

	_, err = s.Get(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)

	seq := s.All(ctx)
	assert.Len(t, Collect(seq), 2)
	assert.Len(t, Collect(seq), 2, "sequence is restartable")
}

func TestCollectErrStopsAtFirstError(t *testing.T) {
	boom := errors.New("disk gone")
	seq := func(yield func(Proposition, error) bool) {
		if !yield(Proposition{MarketID: "a"}, nil) {
			return
		}
		if !yield(Proposition{}, boom) {
			return
		}
		yield(Proposition{MarketID: "b"}, nil)
	}
	props, err := CollectErr(seq)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, props)

	props, err = CollectErr(func(yield func(Proposition, error) bool) {
		yield(Proposition{MarketID: "a"}, nil)
	})
	require.NoError(t, err)
	assert.Len(t, props, 1)
}
