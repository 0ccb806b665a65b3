// Package detect checks constraints against a price surface. Detection is a
// pure function of its inputs: no I/O, no clock, deterministic output order.
package detect

import (
	"github.com/hetulpatel/surveillance/internal/constraint"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Direction is an advisory label for the favorable side of a mispricing.
type Direction string

const (
	BuyAll  Direction = "BUY_ALL"
	SellAll Direction = "SELL_ALL"
	// Pairwise labels name the first market listed in the violation.
	SellFirstBuySecond Direction = "SELL_FIRST_BUY_SECOND"
	BuyFirstSellSecond Direction = "BUY_FIRST_SELL_SECOND"
)

// Violation is one failed check. For ladders each offending adjacent pair
// is its own violation.
type Violation struct {
	ConstraintID       string          `json:"constraint_id"`
	ConstraintType     constraint.Type `json:"constraint_type"`
	Group              string          `json:"group"`
	Relation           string          `json:"relation"`
	MarketIDs          []string        `json:"market_ids"`
	Expected           float64         `json:"expected"`
	Actual             float64         `json:"actual"`
	Magnitude          float64         `json:"violation_magnitude"`
	Tolerance          float64         `json:"tolerance"`
	Severity           Severity        `json:"severity"`
	ArbitrageDirection Direction       `json:"arbitrage_direction,omitempty"`
	Confidence         float64         `json:"confidence"`
}

// DiagnosticKind classifies a constraint that was skipped or left
// indeterminate.
type DiagnosticKind string

const (
	MalformedConstraint  DiagnosticKind = "malformed_constraint"
	InsufficientCoverage DiagnosticKind = "insufficient_coverage"
	UnknownType          DiagnosticKind = "unknown_type"
)

type Diagnostic struct {
	ConstraintID   string          `json:"constraint_id"`
	ConstraintType constraint.Type `json:"constraint_type"`
	Group          string          `json:"group"`
	Kind           DiagnosticKind  `json:"kind"`
	Detail         string          `json:"detail"`
	Observed       int             `json:"observed"`
	Total          int             `json:"total"`
}

// Report is the best-effort outcome of a pass.
type Report struct {
	Violations  []Violation  `json:"violations"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	// Evaluated counts constraints that had enough data to be judged.
	Evaluated int `json:"evaluated"`
}

// DiagnosticCounts tallies diagnostics by kind.
func (r Report) DiagnosticCounts() map[DiagnosticKind]int {
	out := make(map[DiagnosticKind]int)
	for _, d := range r.Diagnostics {
		out[d.Kind]++
	}
	return out
}

// ViolationCounts tallies violations by constraint type.
func (r Report) ViolationCounts() map[constraint.Type]int {
	out := make(map[constraint.Type]int)
	for _, v := range r.Violations {
		out[v.ConstraintType]++
	}
	return out
}
