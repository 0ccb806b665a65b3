// Package proposition holds the symbolic form of a single market's rules and
// the store that owns them.
package proposition

import (
	"strings"
	"time"
)

// Kind classifies what a market's rules are about.
type Kind string

const (
	KindPriceTarget  Kind = "price_target"
	KindEarningsBeat Kind = "earnings_beat"
	KindElection     Kind = "election"
	KindSports       Kind = "sports"
	KindBinaryEvent  Kind = "binary_event"
	KindOther        Kind = "other"
)

// ParseKind normalizes a free-form kind; unknown values map to KindOther.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPriceTarget, KindEarningsBeat, KindElection, KindSports, KindBinaryEvent:
		return k
	default:
		return KindOther
	}
}

// Comparator is the relation between the underlier and the strike.
type Comparator string

const (
	CompGTE Comparator = "gte"
	CompLTE Comparator = "lte"
	CompGT  Comparator = "gt"
	CompLT  Comparator = "lt"
	CompEQ  Comparator = "eq"
)

// ParseComparator accepts the canonical names and their symbols. The second
// return is false for anything else.
func ParseComparator(s string) (Comparator, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gte", ">=", "above", "ge":
		return CompGTE, true
	case "lte", "<=", "below", "le":
		return CompLTE, true
	case "gt", ">":
		return CompGT, true
	case "lt", "<":
		return CompLT, true
	case "eq", "=", "==", "at":
		return CompEQ, true
	default:
		return "", false
	}
}

// Upward reports whether a higher strike is harder to reach.
func (c Comparator) Upward() bool { return c == CompGTE || c == CompGT }

// Downward reports whether a lower strike is harder to reach.
func (c Comparator) Downward() bool { return c == CompLTE || c == CompLT }

// Symbol renders the comparator for relation strings.
func (c Comparator) Symbol() string {
	switch c {
	case CompGTE:
		return ">="
	case CompLTE:
		return "<="
	case CompGT:
		return ">"
	case CompLT:
		return "<"
	case CompEQ:
		return "="
	default:
		return "?"
	}
}

// Proposition is one market's rules reduced to symbolic form. Optional fields
// are pointers or zero values; absence is a valid state, not an error.
type Proposition struct {
	MarketID     string      `json:"market_id"`
	Venue        string      `json:"venue,omitempty"`
	Title        string      `json:"title"`
	Kind         Kind        `json:"proposition_kind"`
	Underlier    string      `json:"underlier,omitempty"`
	Strike       *float64    `json:"strike,omitempty"`
	Comparator   *Comparator `json:"comparator,omitempty"`
	WindowStart  *time.Time  `json:"window_start,omitempty"`
	WindowEnd    *time.Time  `json:"window_end,omitempty"`
	SymbolicForm string      `json:"symbolic_form,omitempty"`
	Confidence   float64     `json:"confidence"`
	Reasoning    string      `json:"reasoning,omitempty"`
	RulesHash    string      `json:"rules_hash,omitempty"`
}

// MissingPriceFields lists the price-target fields that are absent. It is
// empty for every other kind.
func (p Proposition) MissingPriceFields() []string {
	if p.Kind != KindPriceTarget {
		return nil
	}
	var missing []string
	if strings.TrimSpace(p.Underlier) == "" {
		missing = append(missing, "underlier")
	}
	if p.Strike == nil {
		missing = append(missing, "strike")
	}
	if p.Comparator == nil {
		missing = append(missing, "comparator")
	}
	return missing
}

// IsCompletePriceTarget reports whether p can take part in a strike ladder.
func (p Proposition) IsCompletePriceTarget() bool {
	return p.Kind == KindPriceTarget && len(p.MissingPriceFields()) == 0
}

// Level buckets a confidence score.
type Level string

const (
	LevelHigh    Level = "high"
	LevelMedium  Level = "medium"
	LevelLow     Level = "low"
	LevelVeryLow Level = "very_low"
)

func LevelOf(confidence float64) Level {
	switch {
	case confidence >= 0.8:
		return LevelHigh
	case confidence >= 0.6:
		return LevelMedium
	case confidence >= 0.4:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// ClampConfidence bounds c to [0,1]; NaN becomes 0.
func ClampConfidence(c float64) float64 {
	switch {
	case c != c:
		return 0
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// Float returns a pointer to v, for building optional fields.
func Float(v float64) *float64 { return &v }

// Comp returns a pointer to c.
func Comp(c Comparator) *Comparator { return &c }
