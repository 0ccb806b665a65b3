// Package extraction turns raw market rules into propositions through an
// external model, with a content-addressed cache in front so each
// (market_id, rules_text) pair is extracted at most once.
package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/surveillance/internal/hashutil"
	"github.com/hetulpatel/surveillance/internal/proposition"
)

// RulesRecord is one market's raw rules as captured from a venue.
type RulesRecord struct {
	Venue      string    `json:"venue"`
	MarketID   string    `json:"market_id"`
	Title      string    `json:"title"`
	RulesText  string    `json:"raw_rules_text"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
}

// Key returns the cache key for the record.
func (r RulesRecord) Key() string {
	return Key(r.MarketID, r.RulesText)
}

// Key is a 16-hex digest over market_id and rules_text. Amended rules change
// the key, which re-triggers extraction without explicit invalidation.
func Key(marketID, rulesText string) string {
	return hashutil.Short(marketID + ":" + rulesText)
}

// Result is the draft proposition returned by the model. Error is set when
// extraction failed; such results always carry zero confidence.
type Result struct {
	PropositionType string    `json:"proposition_type"`
	Underlier       string    `json:"underlier,omitempty"`
	Strike          FlexFloat `json:"strike,omitzero"`
	Comparator      string    `json:"comparator,omitempty"`
	CompanyTicker   string    `json:"company_ticker,omitempty"`
	Metric          string    `json:"metric,omitempty"`
	WindowStart     string    `json:"window_start,omitempty"`
	WindowEnd       string    `json:"window_end,omitempty"`
	SymbolicForm    string    `json:"symbolic_form,omitempty"`
	Confidence      float64   `json:"confidence"`
	Reasoning       string    `json:"reasoning,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// FailedResult is the error record synthesized for a failed extraction.
func FailedResult(err error) Result {
	return Result{Error: err.Error(), Confidence: 0}
}

// Failed reports whether r is an error record.
func (r Result) Failed() bool {
	return r.Error != ""
}

// ToProposition converts r into a proposition for rec. Malformed optional
// fields are dropped rather than rejected.
func (r Result) ToProposition(rec RulesRecord) proposition.Proposition {
	p := proposition.Proposition{
		MarketID:     rec.MarketID,
		Venue:        rec.Venue,
		Title:        rec.Title,
		Kind:         proposition.ParseKind(r.PropositionType),
		Underlier:    strings.ToUpper(strings.TrimSpace(nullString(r.Underlier))),
		SymbolicForm: strings.TrimSpace(r.SymbolicForm),
		Confidence:   proposition.ClampConfidence(r.Confidence),
		Reasoning:    strings.TrimSpace(r.Reasoning),
		RulesHash:    hashutil.HashStrings(rec.RulesText),
	}
	if r.Failed() {
		p.Kind = proposition.KindOther
		p.Confidence = 0
		p.Reasoning = "extraction failed: " + r.Error
		return p
	}
	if v, ok := r.Strike.Value(); ok {
		p.Strike = proposition.Float(v)
	}
	if c, ok := proposition.ParseComparator(nullString(r.Comparator)); ok {
		p.Comparator = proposition.Comp(c)
	}
	p.WindowStart = parseDate(r.WindowStart)
	p.WindowEnd = parseDate(r.WindowEnd)
	return p
}

func nullString(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "null") {
		return ""
	}
	return s
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(nullString(s))
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// FlexFloat decodes a JSON number, a numeric string ("100,000" included) or
// null. Anything else decodes as absent.
type FlexFloat struct {
	v     float64
	valid bool
}

func NewFlexFloat(v float64) FlexFloat {
	return FlexFloat{v: v, valid: true}
}

func (f FlexFloat) Value() (float64, bool) {
	if !f.valid || math.IsNaN(f.v) || math.IsInf(f.v, 0) {
		return 0, false
	}
	return f.v, true
}

func (f FlexFloat) IsZero() bool { return !f.valid }

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if v, ok := f.Value(); ok {
		return json.Marshal(v)
	}
	return []byte("null"), nil
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("strike: %w", err)
		}
		s = strings.NewReplacer(",", "", "$", "", " ", "").Replace(s)
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			*f = NewFlexFloat(v)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	*f = NewFlexFloat(v)
	return nil
}
