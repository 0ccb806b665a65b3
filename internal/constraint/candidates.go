package constraint

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strings"

	"github.com/hetulpatel/surveillance/internal/proposition"
)

// Candidate is a constraint proposed by a grouping collaborator or by
// configuration rather than derived from ladders.
type Candidate struct {
	Group        string   `json:"group"`
	MarketIDs    []string `json:"market_ids"`
	Type         string   `json:"constraint_type"`
	Relation     string   `json:"relation"`
	SymbolicForm string   `json:"symbolic_form,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Reasoning    string   `json:"reasoning,omitempty"`
}

// FromCandidates converts candidates into constraints. Types are normalized
// but not validated; the detector reports malformed or unknown ones. A
// candidate without its own confidence inherits the minimum over the known
// propositions it references, or 1 if it references none.
func FromCandidates(cands []Candidate, known map[string]proposition.Proposition, source Source) []Constraint {
	out := make([]Constraint, 0, len(cands))
	for _, c := range cands {
		t, ok := ParseType(c.Type)
		if !ok {
			t = Type(strings.TrimSpace(c.Type))
		}
		ids := make([]string, 0, len(c.MarketIDs))
		for _, id := range c.MarketIDs {
			ids = append(ids, strings.TrimSpace(id))
		}
		group := strings.TrimSpace(c.Group)
		if group == "" {
			group = string(t)
		}
		out = append(out, Constraint{
			ID:           ID(t, ids),
			Type:         t,
			Group:        group,
			MarketIDs:    ids,
			Relation:     c.Relation,
			SymbolicForm: c.SymbolicForm,
			Confidence:   candidateConfidence(c, ids, known),
			Reasoning:    c.Reasoning,
			Source:       source,
		})
	}
	return out
}

func candidateConfidence(c Candidate, ids []string, known map[string]proposition.Proposition) float64 {
	if c.Confidence != nil {
		return proposition.ClampConfidence(*c.Confidence)
	}
	conf, found := 1.0, false
	for _, id := range ids {
		if p, ok := known[id]; ok {
			conf = math.Min(conf, p.Confidence)
			found = true
		}
	}
	if !found {
		return 1
	}
	return conf
}

// Index maps propositions by market id.
func Index(props []proposition.Proposition) map[string]proposition.Proposition {
	out := make(map[string]proposition.Proposition, len(props))
	for _, p := range props {
		out[p.MarketID] = p
	}
	return out
}

// Build derives ladders from props and merges supplied candidates into one
// catalog.
func Build(props []proposition.Proposition, supplied []Candidate) *Catalog {
	cat := NewCatalog(Derive(props)...)
	cat.Add(FromCandidates(supplied, Index(props), SourceSupplied)...)
	return cat
}

// LoadCandidates reads candidates as a JSON array or as JSON lines.
func LoadCandidates(r io.Reader) ([]Candidate, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if first == '[' {
		var cands []Candidate
		if err := json.NewDecoder(br).Decode(&cands); err != nil {
			return nil, fmt.Errorf("constraint: decode candidates: %w", err)
		}
		return cands, nil
	}

	var cands []Candidate
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var c Candidate
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("constraint: candidates line %d: %w", line, err)
		}
		cands = append(cands, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("constraint: read candidates: %w", err)
	}
	return cands, nil
}

// LoadCandidatesFile reads path; a missing file yields no candidates.
func LoadCandidatesFile(path string) ([]Candidate, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCandidates(f)
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
