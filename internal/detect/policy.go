package detect

import (
	"github.com/hetulpatel/surveillance/internal/config"
	"github.com/hetulpatel/surveillance/internal/constraint"
)

// Policy holds the tolerances and bands a pass is evaluated with.
type Policy struct {
	Tolerances map[constraint.Type]float64
	// MinCoverage is the observed fraction a group needs before it is judged.
	MinCoverage float64
	// Magnitudes below MediumMultiple×tolerance are low severity, below
	// HighMultiple×tolerance medium, otherwise high.
	MediumMultiple float64
	HighMultiple   float64
}

func DefaultPolicy() Policy {
	return PolicyFromConfig(config.Defaults().Detect)
}

func PolicyFromConfig(cfg config.DetectConfig) Policy {
	return Policy{
		Tolerances: map[constraint.Type]float64{
			constraint.TimeLadder:          cfg.TimeLadderTolerance,
			constraint.MonotonicLadder:     cfg.MonotonicLadderTolerance,
			constraint.ExhaustivePartition: cfg.PartitionTolerance,
			constraint.ImpliedThreshold:    cfg.ImpliedThresholdTolerance,
			constraint.Complement:          cfg.ComplementTolerance,
			constraint.Implication:         cfg.ImplicationTolerance,
			constraint.MutualExclusion:     cfg.ExclusionTolerance,
		},
		MinCoverage:    cfg.MinCoverage,
		MediumMultiple: cfg.SeverityMediumMultiple,
		HighMultiple:   cfg.SeverityHighMultiple,
	}
}

// Tolerance returns the tolerance for t, zero if unset.
func (p Policy) Tolerance(t constraint.Type) float64 {
	return p.Tolerances[t]
}

// Severity grades magnitude relative to tol.
func (p Policy) Severity(magnitude, tol float64) Severity {
	medium, high := p.MediumMultiple, p.HighMultiple
	if medium <= 0 {
		medium = 2
	}
	// An unset or inverted high keeps the default 2:5 spacing above medium.
	if high <= medium {
		high = max(5, 2.5*medium)
	}
	switch {
	case magnitude < medium*tol:
		return SeverityLow
	case magnitude < high*tol:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}
