package detect

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/surveillance/internal/constraint"
	"github.com/hetulpatel/surveillance/internal/prices"
)

func con(t constraint.Type, ids ...string) constraint.Constraint {
	return constraint.Constraint{
		ID:        constraint.ID(t, ids),
		Type:      t,
		Group:     "g",
		MarketIDs: ids,
	}
}

func surface(m map[string]float64) prices.Surface { return prices.NewSurface(m) }

func TestLadderMonotonicHasNoViolation(t *testing.T) {
	rep := Detect([]constraint.Constraint{con(constraint.TimeLadder, "a", "b", "c")},
		surface(map[string]float64{"a": 0.2, "b": 0.2, "c": 0.7}), DefaultPolicy())
	assert.Empty(t, rep.Violations)
	assert.Empty(t, rep.Diagnostics)
	assert.Equal(t, 1, rep.Evaluated)
}

func TestLadderInversion(t *testing.T) {
	rep := Detect([]constraint.Constraint{con(constraint.TimeLadder, "A", "B")},
		surface(map[string]float64{"A": 0.80, "B": 0.60}), DefaultPolicy())
	require.Len(t, rep.Violations, 1)
	v := rep.Violations[0]
	assert.InDelta(t, 0.20, v.Magnitude, 1e-9)
	assert.Equal(t, SeverityHigh, v.Severity)
	assert.Equal(t, []string{"A", "B"}, v.MarketIDs)
	assert.Equal(t, 0.80, v.Actual)
	assert.Equal(t, 0.60, v.Expected)
}

func TestLadderWithinToleranceAndPerPair(t *testing.T) {
	c := con(constraint.MonotonicLadder, "a", "b", "c", "d")
	rep := Detect([]constraint.Constraint{c},
		surface(map[string]float64{"a": 0.505, "b": 0.50, "c": 0.9, "d": 0.3}), DefaultPolicy())
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, []string{"c", "d"}, rep.Violations[0].MarketIDs)
}

func TestLadderSkipsUnobserved(t *testing.T) {
	rep := Detect([]constraint.Constraint{con(constraint.TimeLadder, "a", "b", "c")},
		surface(map[string]float64{"a": 0.9, "c": 0.5}), DefaultPolicy())
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, []string{"a", "c"}, rep.Violations[0].MarketIDs)

	rep = Detect([]constraint.Constraint{con(constraint.TimeLadder, "a", "b")},
		surface(map[string]float64{"a": 0.9}), DefaultPolicy())
	assert.Empty(t, rep.Violations)
	require.Len(t, rep.Diagnostics, 1)
	assert.Equal(t, InsufficientCoverage, rep.Diagnostics[0].Kind)
	assert.Zero(t, rep.Evaluated)
}

func TestPartitionBoundaryInclusive(t *testing.T) {
	c := con(constraint.ExhaustivePartition, "X", "Y", "Z")
	rep := Detect([]constraint.Constraint{c},
		surface(map[string]float64{"X": 0.30, "Y": 0.35, "Z": 0.30}), DefaultPolicy())
	assert.Empty(t, rep.Violations)

	rep = Detect([]constraint.Constraint{c},
		surface(map[string]float64{"X": 0.30, "Y": 0.30, "Z": 0.30}), DefaultPolicy())
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, BuyAll, rep.Violations[0].ArbitrageDirection)
	assert.InDelta(t, 0.10, rep.Violations[0].Magnitude, 1e-9)

	rep = Detect([]constraint.Constraint{c},
		surface(map[string]float64{"X": 0.40, "Y": 0.40, "Z": 0.40}), DefaultPolicy())
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, SellAll, rep.Violations[0].ArbitrageDirection)
}

func TestPartitionCoverage(t *testing.T) {
	c := con(constraint.ExhaustivePartition, "a", "b", "c", "d", "e")
	rep := Detect([]constraint.Constraint{c},
		surface(map[string]float64{"a": 0.9, "b": 0.9, "c": 0.9}), DefaultPolicy())
	assert.Empty(t, rep.Violations)
	require.Len(t, rep.Diagnostics, 1)
	assert.Equal(t, InsufficientCoverage, rep.Diagnostics[0].Kind)
	assert.Equal(t, 3, rep.Diagnostics[0].Observed)
	assert.Equal(t, 5, rep.Diagnostics[0].Total)

	rep = Detect([]constraint.Constraint{c},
		surface(map[string]float64{"a": 0.1, "b": 0.1, "c": 0.1, "d": 0.1}), DefaultPolicy())
	require.Len(t, rep.Violations, 1, "4/5 meets the 80% floor")
}

func TestImpliedThreshold(t *testing.T) {
	c := con(constraint.ImpliedThreshold, "T", "b1", "b2", "b3")
	rep := Detect([]constraint.Constraint{c},
		surface(map[string]float64{"T": 0.50, "b1": 0.25, "b2": 0.15}), DefaultPolicy())
	require.Len(t, rep.Violations, 1)
	assert.InDelta(t, 0.10, rep.Violations[0].Magnitude, 1e-9)
	assert.InDelta(t, 0.40, rep.Violations[0].Actual, 1e-9)

	rep = Detect([]constraint.Constraint{c},
		surface(map[string]float64{"T": 0.50, "b1": 0.25, "b2": 0.24}), DefaultPolicy())
	assert.Empty(t, rep.Violations)

	rep = Detect([]constraint.Constraint{c},
		surface(map[string]float64{"b1": 0.25, "b2": 0.24}), DefaultPolicy())
	assert.Empty(t, rep.Violations)
	assert.Len(t, rep.Diagnostics, 1)
}

func TestComplementImplicationExclusion(t *testing.T) {
	s := surface(map[string]float64{"yes": 0.7, "no": 0.45, "a": 0.6, "b": 0.4, "x": 0.5, "y": 0.4, "z": 0.3})
	rep := Detect([]constraint.Constraint{
		con(constraint.Complement, "yes", "no"),
		con(constraint.Implication, "a", "b"),
		con(constraint.MutualExclusion, "x", "y", "z"),
	}, s, DefaultPolicy())
	counts := rep.ViolationCounts()
	assert.Equal(t, 1, counts[constraint.Complement])
	assert.Equal(t, 1, counts[constraint.Implication])
	assert.Equal(t, 1, counts[constraint.MutualExclusion])

	rep = Detect([]constraint.Constraint{con(constraint.Implication, "b", "a")}, s, DefaultPolicy())
	assert.Empty(t, rep.Violations)
}

func TestMalformedAndUnknownDoNotAbort(t *testing.T) {
	rep := Detect([]constraint.Constraint{
		con(constraint.ExhaustivePartition, "only"),
		{ID: "u", Type: "parity", MarketIDs: []string{"a", "b"}},
		con(constraint.TimeLadder, "A", "B"),
	}, surface(map[string]float64{"A": 0.8, "B": 0.6, "only": 0.5}), DefaultPolicy())
	assert.Len(t, rep.Violations, 1)
	counts := rep.DiagnosticCounts()
	assert.Equal(t, 1, counts[MalformedConstraint])
	assert.Equal(t, 1, counts[UnknownType])
}

func TestDetectIsIdempotentAndOrderIndependent(t *testing.T) {
	cs := []constraint.Constraint{
		con(constraint.TimeLadder, "a", "b", "c"),
		con(constraint.ExhaustivePartition, "p", "q"),
		con(constraint.Complement, "a", "q"),
		con(constraint.ImpliedThreshold, "c", "a", "b"),
		con(constraint.MonotonicLadder, "c", "b", "a"),
	}
	s := surface(map[string]float64{"a": 0.9, "b": 0.5, "c": 0.2, "p": 0.1, "q": 0.2})
	first := Detect(cs, s, DefaultPolicy())
	require.NotEmpty(t, first.Violations)
	assert.Equal(t, first, Detect(cs, s, DefaultPolicy()))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		shuffled := append([]constraint.Constraint(nil), cs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, first, New(DefaultPolicy(), 4).Detect(shuffled, s))
	}
}

func TestSeverityBands(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, SeverityLow, p.Severity(0.015, 0.01))
	assert.Equal(t, SeverityMedium, p.Severity(0.03, 0.01))
	assert.Equal(t, SeverityHigh, p.Severity(0.06, 0.01))
}

func TestSeverityHighBandStaysAboveMedium(t *testing.T) {
	p := Policy{MediumMultiple: 6}
	assert.Equal(t, SeverityLow, p.Severity(0.05, 0.01))
	assert.Equal(t, SeverityMedium, p.Severity(0.07, 0.01))
	assert.Equal(t, SeverityHigh, p.Severity(0.2, 0.01))

	p = Policy{MediumMultiple: 4, HighMultiple: 2}
	assert.Equal(t, SeverityLow, p.Severity(0.03, 0.01))
	assert.Equal(t, SeverityMedium, p.Severity(0.05, 0.01))
	assert.Equal(t, SeverityHigh, p.Severity(0.2, 0.01))

	p = Policy{MediumMultiple: 3}
	assert.Equal(t, SeverityMedium, p.Severity(0.04, 0.01))
	assert.Equal(t, SeverityHigh, p.Severity(0.08, 0.01))
}
