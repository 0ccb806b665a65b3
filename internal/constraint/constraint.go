// Package constraint derives and holds typed logical relations between
// markets: ladders, partitions, thresholds, complements, implications and
// exclusions.
package constraint

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hetulpatel/surveillance/internal/hashutil"
)

// Type names a constraint variant. Each variant has its own check.
type Type string

const (
	TimeLadder          Type = "time_ladder"
	ExhaustivePartition Type = "exhaustive_partition"
	ImpliedThreshold    Type = "implied_threshold"
	MonotonicLadder     Type = "monotonic_ladder"
	Complement          Type = "complement"
	Implication         Type = "implication"
	MutualExclusion     Type = "mutual_exclusion"
)

// Types lists every known variant.
var Types = []Type{
	TimeLadder, ExhaustivePartition, ImpliedThreshold, MonotonicLadder,
	Complement, Implication, MutualExclusion,
}

var (
	// ErrMalformed marks a constraint whose market list does not fit its type.
	ErrMalformed = errors.New("constraint: malformed")
	// ErrUnknownType marks a constraint whose type has no check.
	ErrUnknownType = errors.New("constraint: unknown type")
)

// ParseType normalizes s. The second return is false for unknown types.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	return t, slices.Contains(Types, t)
}

// Arity returns the minimum and maximum number of markets for t. A maximum
// of zero means unbounded.
func (t Type) Arity() (lo, hi int) {
	switch t {
	case Complement, Implication:
		return 2, 2
	default:
		return 2, 0
	}
}

// Unordered reports whether market order carries no meaning for t.
func (t Type) Unordered() bool {
	switch t {
	case ExhaustivePartition, Complement, MutualExclusion:
		return true
	default:
		return false
	}
}

// Source records where a constraint came from.
type Source string

const (
	SourceDerived  Source = "derived"
	SourceSupplied Source = "supplied"
	SourceLLM      Source = "llm"
)

// Constraint is a typed relation over market ids. Order of MarketIDs is
// significant for ladders and thresholds: index 0 is the anchor.
type Constraint struct {
	ID           string   `json:"constraint_id"`
	Type         Type     `json:"constraint_type"`
	Group        string   `json:"group"`
	MarketIDs    []string `json:"market_ids"`
	Relation     string   `json:"relation"`
	SymbolicForm string   `json:"symbolic_form,omitempty"`
	Confidence   float64  `json:"confidence"`
	Reasoning    string   `json:"reasoning,omitempty"`
	Source       Source   `json:"source,omitempty"`
}

// ID derives the identity of a constraint from its type and markets. For
// unordered types the markets are sorted first so permutations collapse.
func ID(t Type, marketIDs []string) string {
	ids := marketIDs
	if t.Unordered() {
		ids = slices.Clone(marketIDs)
		slices.Sort(ids)
	}
	return hashutil.ShortStrings(append([]string{string(t)}, ids...)...)
}

// Validate reports ErrUnknownType or ErrMalformed.
func (c Constraint) Validate() error {
	if _, ok := ParseType(string(c.Type)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, c.Type)
	}
	lo, hi := c.Type.Arity()
	n := len(c.MarketIDs)
	if n < lo {
		return fmt.Errorf("%w: %s needs at least %d markets, has %d", ErrMalformed, c.Type, lo, n)
	}
	if hi > 0 && n > hi {
		return fmt.Errorf("%w: %s takes at most %d markets, has %d", ErrMalformed, c.Type, hi, n)
	}
	seen := make(map[string]struct{}, n)
	for _, id := range c.MarketIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty market id", ErrMalformed)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: market %s listed twice", ErrMalformed, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
