package constraint

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/surveillance/internal/proposition"
)

func target(id, underlier string, strike float64, comp proposition.Comparator, end string, conf float64) proposition.Proposition {
	p := proposition.Proposition{
		MarketID:   id,
		Kind:       proposition.KindPriceTarget,
		Underlier:  underlier,
		Strike:     proposition.Float(strike),
		Comparator: proposition.Comp(comp),
		Confidence: conf,
	}
	if end != "" {
		t, _ := time.Parse(time.DateOnly, end)
		p.WindowEnd = &t
	}
	return p
}

func byType(cs []Constraint, t Type) []Constraint {
	var out []Constraint
	for _, c := range cs {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

func TestDeriveUpwardLadderOrdersHardestFirst(t *testing.T) {
	props := []proposition.Proposition{
		target("b100", "BTC", 100000, proposition.CompGTE, "2025-12-31", 0.9),
		target("b120", "btc", 120000, proposition.CompGTE, "2025-12-31", 0.7),
		target("b110", "BTC", 110000, proposition.CompGT, "2025-12-31", 0.8),
	}
	ladders := byType(Derive(props), MonotonicLadder)
	require.Len(t, ladders, 1)
	l := ladders[0]
	assert.Equal(t, []string{"b120", "b110", "b100"}, l.MarketIDs)
	assert.Equal(t, 0.7, l.Confidence)
	assert.Equal(t, "BTC:up:2025-12-31", l.Group)
	assert.Equal(t, SourceDerived, l.Source)
	assert.Contains(t, l.Relation, "P(BTC >= 120000) <= P(BTC > 110000)")
}

func TestDeriveDownwardLadderOrdersLowestFirst(t *testing.T) {
	props := []proposition.Proposition{
		target("e3", "ETH", 3000, proposition.CompLTE, "", 0.9),
		target("e2", "ETH", 2000, proposition.CompLT, "", 0.9),
	}
	ladders := byType(Derive(props), MonotonicLadder)
	require.Len(t, ladders, 1)
	assert.Equal(t, []string{"e2", "e3"}, ladders[0].MarketIDs)
	assert.Equal(t, "ETH:down:open", ladders[0].Group)
}

func TestDeriveSkipsIncompleteAndEq(t *testing.T) {
	incomplete := target("x", "BTC", 1, proposition.CompGTE, "", 0.9)
	incomplete.Strike = nil
	props := []proposition.Proposition{
		incomplete,
		target("y", "BTC", 2, proposition.CompGTE, "", 0.9),
		target("z", "BTC", 3, proposition.CompEQ, "", 0.9),
		{MarketID: "w", Kind: proposition.KindElection, Confidence: 0.9},
	}
	assert.Empty(t, Derive(props))
}

func TestDeriveDuplicateStrikeKeepsHigherConfidence(t *testing.T) {
	props := []proposition.Proposition{
		target("lo", "SPX", 5000, proposition.CompGTE, "", 0.65),
		target("hi", "SPX", 5000, proposition.CompGTE, "", 0.95),
		target("other", "SPX", 5500, proposition.CompGTE, "", 0.9),
	}
	ladders := byType(Derive(props), MonotonicLadder)
	require.Len(t, ladders, 1)
	assert.Equal(t, []string{"other", "hi"}, ladders[0].MarketIDs)
}

func TestDeriveTimeLadder(t *testing.T) {
	props := []proposition.Proposition{
		target("dec", "BTC", 100000, proposition.CompGTE, "2025-12-31", 0.9),
		target("jun", "BTC", 100000, proposition.CompGTE, "2025-06-30", 0.8),
		target("mar", "BTC", 100000, proposition.CompGTE, "2025-03-31", 0.85),
	}
	ladders := byType(Derive(props), TimeLadder)
	require.Len(t, ladders, 1)
	assert.Equal(t, []string{"mar", "jun", "dec"}, ladders[0].MarketIDs)
	assert.Equal(t, 0.8, ladders[0].Confidence)
}

func TestDeriveIsDeterministic(t *testing.T) {
	props := []proposition.Proposition{
		target("a", "BTC", 1, proposition.CompGTE, "2025-01-01", 0.9),
		target("b", "BTC", 2, proposition.CompGTE, "2025-01-01", 0.9),
		target("c", "BTC", 1, proposition.CompGTE, "2025-02-01", 0.9),
		target("d", "ETH", 1, proposition.CompLTE, "", 0.9),
		target("e", "ETH", 2, proposition.CompLTE, "", 0.9),
	}
	first := Derive(props)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Derive(props))
	}
}

func TestIDUnorderedTypesCollapsePermutations(t *testing.T) {
	assert.Equal(t, ID(ExhaustivePartition, []string{"a", "b"}), ID(ExhaustivePartition, []string{"b", "a"}))
	assert.NotEqual(t, ID(TimeLadder, []string{"a", "b"}), ID(TimeLadder, []string{"b", "a"}))
	assert.NotEqual(t, ID(TimeLadder, []string{"a", "b"}), ID(MonotonicLadder, []string{"a", "b"}))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		c    Constraint
		want error
	}{
		{"ok", Constraint{Type: ExhaustivePartition, MarketIDs: []string{"a", "b", "c"}}, nil},
		{"too few", Constraint{Type: TimeLadder, MarketIDs: []string{"a"}}, ErrMalformed},
		{"complement too many", Constraint{Type: Complement, MarketIDs: []string{"a", "b", "c"}}, ErrMalformed},
		{"duplicate", Constraint{Type: MutualExclusion, MarketIDs: []string{"a", "a"}}, ErrMalformed},
		{"unknown", Constraint{Type: "parity", MarketIDs: []string{"a", "b"}}, ErrUnknownType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestCatalogCollapsesDuplicates(t *testing.T) {
	c1 := Constraint{Type: Complement, MarketIDs: []string{"a", "b"}, Confidence: 0.6}
	c2 := Constraint{Type: Complement, MarketIDs: []string{"b", "a"}, Confidence: 0.9}
	cat := NewCatalog(c1)
	assert.Equal(t, 0, cat.Add(c2))
	require.Equal(t, 1, cat.Len())
	assert.Equal(t, 0.9, cat.All()[0].Confidence)
	assert.Equal(t, 1, cat.CountByType()[Complement])
}

func TestFromCandidatesConfidence(t *testing.T) {
	known := Index([]proposition.Proposition{
		{MarketID: "a", Confidence: 0.7},
		{MarketID: "b", Confidence: 0.9},
	})
	explicit := 0.4
	cands := []Candidate{
		{Group: "g1", Type: "Exhaustive_Partition", MarketIDs: []string{"a", "b", "z"}},
		{Type: "implication", MarketIDs: []string{"a", "b"}, Confidence: &explicit},
		{Type: "complement", MarketIDs: []string{"x", "y"}},
	}
	cs := FromCandidates(cands, known, SourceSupplied)
	require.Len(t, cs, 3)
	assert.Equal(t, ExhaustivePartition, cs[0].Type)
	assert.Equal(t, 0.7, cs[0].Confidence)
	assert.Equal(t, 0.4, cs[1].Confidence)
	assert.Equal(t, "implication", cs[1].Group)
	assert.Equal(t, 1.0, cs[2].Confidence)
}

func TestLoadCandidatesArrayAndLines(t *testing.T) {
	arr := `  [{"group":"fed","constraint_type":"exhaustive_partition","market_ids":["a","b"],"relation":"sum = 1"}]`
	cands, err := LoadCandidates(strings.NewReader(arr))
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "fed", cands[0].Group)

	lines := "{\"constraint_type\":\"complement\",\"market_ids\":[\"y\",\"n\"]}\n\n{\"constraint_type\":\"implication\",\"market_ids\":[\"a\",\"b\"]}\n"
	cands, err = LoadCandidates(strings.NewReader(lines))
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "implication", cands[1].Type)

	_, err = LoadCandidates(strings.NewReader("{bad"))
	assert.Error(t, err)

	cands, err = LoadCandidates(strings.NewReader("   "))
	require.NoError(t, err)
	assert.Empty(t, cands)
}

type stubCompleter struct{ reply string }

func (s stubCompleter) Complete(context.Context, string, string) (string, error) {
	return s.reply, nil
}

func TestLLMGrouperFiltersCandidates(t *testing.T) {
	reply := "Here you go:\n```json\n[" +
		`{"constraint_type":"complement","market_ids":["a","b"],"confidence":0.9},` +
		`{"constraint_type":"implication","market_ids":["a","ghost"]},` +
		`{"constraint_type":"exhaustive_partition","market_ids":["a","b"]}` +
		"]\n```"
	g, err := NewLLMGrouper(stubCompleter{reply: reply}, 0)
	require.NoError(t, err)
	cands, err := g.Group(context.Background(), []proposition.Proposition{{MarketID: "a"}, {MarketID: "b"}})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "complement", cands[0].Type)
	assert.Equal(t, "llm:complement", cands[0].Group)
}

func TestBuildMergesDerivedAndSupplied(t *testing.T) {
	props := []proposition.Proposition{
		target("b1", "BTC", 1, proposition.CompGTE, "", 0.9),
		target("b2", "BTC", 2, proposition.CompGTE, "", 0.9),
	}
	cat := Build(props, []Candidate{{Type: "mutual_exclusion", MarketIDs: []string{"x", "y"}}})
	assert.Equal(t, 2, cat.Len())
}
