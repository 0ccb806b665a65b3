package detect

import (
	"errors"
	"slices"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/surveillance/internal/constraint"
	"github.com/hetulpatel/surveillance/internal/prices"
)

// Detector evaluates constraints against a surface. It holds no state
// between calls.
type Detector struct {
	policy  Policy
	workers int
}

// New returns a detector. workers > 1 evaluates constraints in parallel; the
// report is identical either way.
func New(policy Policy, workers int) *Detector {
	if workers <= 0 {
		workers = 1
	}
	return &Detector{policy: policy, workers: workers}
}

func (d *Detector) Policy() Policy { return d.policy }

// Detect evaluates every constraint. A constraint that cannot be judged
// yields a diagnostic and never stops the pass.
func (d *Detector) Detect(constraints []constraint.Constraint, surface prices.Surface) Report {
	results := make([]result, len(constraints))
	if d.workers == 1 || len(constraints) < 2 {
		for i, c := range constraints {
			results[i] = d.evaluate(c, surface)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(d.workers)
		for i, c := range constraints {
			g.Go(func() error {
				results[i] = d.evaluate(c, surface)
				return nil
			})
		}
		g.Wait()
	}

	var rep Report
	for _, r := range results {
		if r.diag != nil {
			rep.Diagnostics = append(rep.Diagnostics, *r.diag)
			continue
		}
		rep.Evaluated++
		rep.Violations = append(rep.Violations, r.violations...)
	}
	sortViolations(rep.Violations)
	sortDiagnostics(rep.Diagnostics)
	return rep
}

func (d *Detector) evaluate(c constraint.Constraint, surface prices.Surface) result {
	if c.ID == "" {
		c.ID = constraint.ID(c.Type, c.MarketIDs)
	}
	if err := c.Validate(); err != nil {
		kind := MalformedConstraint
		if errors.Is(err, constraint.ErrUnknownType) {
			kind = UnknownType
		}
		return result{diag: &Diagnostic{
			ConstraintID:   c.ID,
			ConstraintType: c.Type,
			Group:          c.Group,
			Kind:           kind,
			Detail:         err.Error(),
			Total:          len(c.MarketIDs),
		}}
	}
	return checks[c.Type](c, surface, d.policy)
}

// Detect runs a one-off pass with policy.
func Detect(constraints []constraint.Constraint, surface prices.Surface, policy Policy) Report {
	return New(policy, 1).Detect(constraints, surface)
}

func sortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.ConstraintType != b.ConstraintType {
			return a.ConstraintType < b.ConstraintType
		}
		if a.ConstraintID != b.ConstraintID {
			return a.ConstraintID < b.ConstraintID
		}
		if c := slices.Compare(a.MarketIDs, b.MarketIDs); c != 0 {
			return c < 0
		}
		return a.Magnitude < b.Magnitude
	})
}

func sortDiagnostics(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.ConstraintID != b.ConstraintID {
			return a.ConstraintID < b.ConstraintID
		}
		return strings.Compare(a.Detail, b.Detail) < 0
	})
}
