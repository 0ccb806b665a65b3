package detect

import (
	"fmt"
	"math"
	"slices"

	"github.com/hetulpatel/surveillance/internal/constraint"
	"github.com/hetulpatel/surveillance/internal/prices"
)

// eps absorbs float error so that boundaries stay inclusive: 0.30+0.35+0.30
// must not exceed a 0.05 tolerance.
const eps = 1e-9

func exceeds(magnitude, tol float64) bool {
	return magnitude > tol+eps
}

type result struct {
	violations []Violation
	diag       *Diagnostic
}

type checkFunc func(c constraint.Constraint, s prices.Surface, p Policy) result

var checks = map[constraint.Type]checkFunc{
	constraint.TimeLadder:          checkLadder,
	constraint.MonotonicLadder:     checkLadder,
	constraint.ExhaustivePartition: checkPartition,
	constraint.ImpliedThreshold:    checkImpliedThreshold,
	constraint.Complement:          checkComplement,
	constraint.Implication:         checkImplication,
	constraint.MutualExclusion:     checkExclusion,
}

type observed struct {
	id    string
	price float64
}

func observe(ids []string, s prices.Surface) []observed {
	out := make([]observed, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.Get(id); ok {
			out = append(out, observed{id, p})
		}
	}
	return out
}

func insufficient(c constraint.Constraint, seen int, detail string) result {
	return result{diag: &Diagnostic{
		ConstraintID:   c.ID,
		ConstraintType: c.Type,
		Group:          c.Group,
		Kind:           InsufficientCoverage,
		Detail:         detail,
		Observed:       seen,
		Total:          len(c.MarketIDs),
	}}
}

func covered(seen, total int, p Policy) bool {
	return float64(seen) >= p.MinCoverage*float64(total)-eps
}

func (p Policy) violation(c constraint.Constraint, ids []string, expected, actual, magnitude float64, dir Direction) Violation {
	tol := p.Tolerance(c.Type)
	return Violation{
		ConstraintID:       c.ID,
		ConstraintType:     c.Type,
		Group:              c.Group,
		Relation:           c.Relation,
		MarketIDs:          slices.Clone(ids),
		Expected:           expected,
		Actual:             actual,
		Magnitude:          magnitude,
		Tolerance:          tol,
		Severity:           p.Severity(magnitude, tol),
		ArbitrageDirection: dir,
		Confidence:         c.Confidence,
	}
}

// checkLadder walks adjacent observed markets in list order. Unobserved
// markets drop out of the chain; the bound still holds across the gap.
func checkLadder(c constraint.Constraint, s prices.Surface, p Policy) result {
	obs := observe(c.MarketIDs, s)
	if len(obs) < 2 {
		return insufficient(c, len(obs), "fewer than 2 observed prices")
	}
	tol := p.Tolerance(c.Type)
	var res result
	for i := 0; i+1 < len(obs); i++ {
		a, b := obs[i], obs[i+1]
		if exceeds(a.price-b.price, tol) {
			res.violations = append(res.violations, p.violation(c,
				[]string{a.id, b.id}, b.price, a.price, a.price-b.price, SellFirstBuySecond))
		}
	}
	return res
}

func checkPartition(c constraint.Constraint, s prices.Surface, p Policy) result {
	obs := observe(c.MarketIDs, s)
	if !covered(len(obs), len(c.MarketIDs), p) {
		return insufficient(c, len(obs), fmt.Sprintf("coverage %d/%d below %.0f%%", len(obs), len(c.MarketIDs), p.MinCoverage*100))
	}
	sum := 0.0
	for _, o := range obs {
		sum += o.price
	}
	mag := math.Abs(sum - 1)
	if !exceeds(mag, p.Tolerance(c.Type)) {
		return result{}
	}
	dir := SellAll
	if sum < 1 {
		dir = BuyAll
	}
	return result{violations: []Violation{p.violation(c, c.MarketIDs, 1, sum, mag, dir)}}
}

// checkImpliedThreshold compares market_ids[0] with the sum of the rest.
// Unobserved buckets contribute zero.
func checkImpliedThreshold(c constraint.Constraint, s prices.Surface, p Policy) result {
	threshold, ok := s.Get(c.MarketIDs[0])
	if !ok {
		return insufficient(c, len(observe(c.MarketIDs, s)), "threshold market unobserved")
	}
	sum := 0.0
	for _, o := range observe(c.MarketIDs[1:], s) {
		sum += o.price
	}
	mag := math.Abs(threshold - sum)
	if !exceeds(mag, p.Tolerance(c.Type)) {
		return result{}
	}
	dir := SellFirstBuySecond
	if threshold < sum {
		dir = BuyFirstSellSecond
	}
	return result{violations: []Violation{p.violation(c, c.MarketIDs, threshold, sum, mag, dir)}}
}

func checkComplement(c constraint.Constraint, s prices.Surface, p Policy) result {
	obs := observe(c.MarketIDs, s)
	if len(obs) < 2 {
		return insufficient(c, len(obs), "both legs must be observed")
	}
	sum := obs[0].price + obs[1].price
	mag := math.Abs(sum - 1)
	if !exceeds(mag, p.Tolerance(c.Type)) {
		return result{}
	}
	dir := SellAll
	if sum < 1 {
		dir = BuyAll
	}
	return result{violations: []Violation{p.violation(c, c.MarketIDs, 1, sum, mag, dir)}}
}

// checkImplication bounds P(A) by P(B) where A is market_ids[0].
func checkImplication(c constraint.Constraint, s prices.Surface, p Policy) result {
	obs := observe(c.MarketIDs, s)
	if len(obs) < 2 {
		return insufficient(c, len(obs), "both markets must be observed")
	}
	a, b := obs[0], obs[1]
	if !exceeds(a.price-b.price, p.Tolerance(c.Type)) {
		return result{}
	}
	return result{violations: []Violation{p.violation(c, c.MarketIDs, b.price, a.price, a.price-b.price, SellFirstBuySecond)}}
}

func checkExclusion(c constraint.Constraint, s prices.Surface, p Policy) result {
	obs := observe(c.MarketIDs, s)
	if len(obs) < 2 || !covered(len(obs), len(c.MarketIDs), p) {
		return insufficient(c, len(obs), fmt.Sprintf("coverage %d/%d below %.0f%%", len(obs), len(c.MarketIDs), p.MinCoverage*100))
	}
	sum := 0.0
	for _, o := range obs {
		sum += o.price
	}
	if !exceeds(sum-1, p.Tolerance(c.Type)) {
		return result{}
	}
	return result{violations: []Violation{p.violation(c, c.MarketIDs, 1, sum, sum-1, SellAll)}}
}
