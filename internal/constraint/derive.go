package constraint

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/surveillance/internal/proposition"
)

const openWindow = "open"

// Derive builds strike ladders and time ladders from accepted price-target
// propositions. Incomplete price targets and eq comparators are ignored.
// The result is sorted by ID.
func Derive(props []proposition.Proposition) []Constraint {
	var targets []proposition.Proposition
	for _, p := range props {
		if !p.IsCompletePriceTarget() || *p.Comparator == proposition.CompEQ {
			continue
		}
		if math.IsNaN(*p.Strike) || math.IsInf(*p.Strike, 0) {
			continue
		}
		targets = append(targets, p)
	}
	out := append(strikeLadders(targets), timeLadders(targets)...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func direction(c proposition.Comparator) string {
	if c.Upward() {
		return "up"
	}
	return "down"
}

func windowKey(t *time.Time) string {
	if t == nil {
		return openWindow
	}
	return t.UTC().Format(time.DateOnly)
}

// better reports whether a should replace b when both claim the same slot.
func better(a, b proposition.Proposition) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.MarketID < b.MarketID
}

// strikeLadders groups by underlier, direction and window end. Markets are
// ordered from the hardest strike to the easiest, so each market's price
// should not exceed the next one's.
func strikeLadders(targets []proposition.Proposition) []Constraint {
	type key struct{ underlier, dir, window string }
	groups := make(map[key]map[float64]proposition.Proposition)
	for _, p := range targets {
		k := key{strings.ToUpper(p.Underlier), direction(*p.Comparator), windowKey(p.WindowEnd)}
		byStrike, ok := groups[k]
		if !ok {
			byStrike = make(map[float64]proposition.Proposition)
			groups[k] = byStrike
		}
		if prev, ok := byStrike[*p.Strike]; !ok || better(p, prev) {
			byStrike[*p.Strike] = p
		}
	}

	var out []Constraint
	for k, byStrike := range groups {
		if len(byStrike) < 2 {
			continue
		}
		rungs := make([]proposition.Proposition, 0, len(byStrike))
		for _, p := range byStrike {
			rungs = append(rungs, p)
		}
		sort.Slice(rungs, func(i, j int) bool {
			if k.dir == "up" {
				return *rungs[i].Strike > *rungs[j].Strike
			}
			return *rungs[i].Strike < *rungs[j].Strike
		})

		terms := make([]string, len(rungs))
		for i, p := range rungs {
			terms[i] = fmt.Sprintf("P(%s %s %s)", k.underlier, p.Comparator.Symbol(), formatStrike(*p.Strike))
		}
		group := fmt.Sprintf("%s:%s:%s", k.underlier, k.dir, k.window)
		con := newDerived(MonotonicLadder, group, rungs)
		con.Relation = strings.Join(terms, " <= ")
		con.SymbolicForm = con.Relation
		con.Reasoning = fmt.Sprintf("%d strikes on %s expiring %s; a harder strike cannot be likelier than an easier one", len(rungs), k.underlier, k.window)
		out = append(out, con)
	}
	return out
}

// timeLadders groups by underlier, comparator and strike across window
// ends. A later deadline gives the barrier more time, so prices should
// not fall as the window grows.
func timeLadders(targets []proposition.Proposition) []Constraint {
	type key struct {
		underlier string
		comp      proposition.Comparator
		strike    float64
	}
	groups := make(map[key]map[string]proposition.Proposition)
	for _, p := range targets {
		if p.WindowEnd == nil {
			continue
		}
		k := key{strings.ToUpper(p.Underlier), *p.Comparator, *p.Strike}
		byWindow, ok := groups[k]
		if !ok {
			byWindow = make(map[string]proposition.Proposition)
			groups[k] = byWindow
		}
		w := windowKey(p.WindowEnd)
		if prev, ok := byWindow[w]; !ok || better(p, prev) {
			byWindow[w] = p
		}
	}

	var out []Constraint
	for k, byWindow := range groups {
		if len(byWindow) < 2 {
			continue
		}
		windows := make([]string, 0, len(byWindow))
		for w := range byWindow {
			windows = append(windows, w)
		}
		sort.Strings(windows)
		rungs := make([]proposition.Proposition, len(windows))
		terms := make([]string, len(windows))
		for i, w := range windows {
			rungs[i] = byWindow[w]
			terms[i] = fmt.Sprintf("P(%s %s %s by %s)", k.underlier, k.comp.Symbol(), formatStrike(k.strike), w)
		}
		group := fmt.Sprintf("%s:%s:%s", k.underlier, k.comp, formatStrike(k.strike))
		con := newDerived(TimeLadder, group, rungs)
		con.Relation = strings.Join(terms, " <= ")
		con.SymbolicForm = con.Relation
		con.Reasoning = fmt.Sprintf("%d deadlines for the same %s barrier; a later deadline cannot be less likely", len(rungs), k.underlier)
		out = append(out, con)
	}
	return out
}

func newDerived(t Type, group string, rungs []proposition.Proposition) Constraint {
	ids := make([]string, len(rungs))
	conf := 1.0
	for i, p := range rungs {
		ids[i] = p.MarketID
		conf = math.Min(conf, p.Confidence)
	}
	return Constraint{
		ID:         ID(t, ids),
		Type:       t,
		Group:      group,
		MarketIDs:  ids,
		Confidence: conf,
		Source:     SourceDerived,
	}
}

func formatStrike(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
