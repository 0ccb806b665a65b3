package constraint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hetulpatel/surveillance/internal/llm"
	"github.com/hetulpatel/surveillance/internal/logging"
	"github.com/hetulpatel/surveillance/internal/proposition"
)

// Grouper proposes constraints that ladders cannot find mechanically.
type Grouper interface {
	Group(ctx context.Context, props []proposition.Proposition) ([]Candidate, error)
}

// DefaultGroupLimit caps how many propositions are sent in one prompt.
const DefaultGroupLimit = 100

// LLMGrouper asks a chat model for complement, implication, exclusion and
// ladder candidates.
type LLMGrouper struct {
	client llm.Completer
	limit  int
}

func NewLLMGrouper(client llm.Completer, limit int) (*LLMGrouper, error) {
	if client == nil {
		return nil, fmt.Errorf("constraint: llm client is required")
	}
	if limit <= 0 {
		limit = DefaultGroupLimit
	}
	return &LLMGrouper{client: client, limit: limit}, nil
}

type groupSummary struct {
	MarketID     string   `json:"market_id"`
	Title        string   `json:"title,omitempty"`
	Kind         string   `json:"type"`
	Underlier    string   `json:"underlier,omitempty"`
	Strike       *float64 `json:"strike,omitempty"`
	SymbolicForm string   `json:"symbolic_form,omitempty"`
}

// Group returns candidates whose markets are all among props. Candidates of
// types the model is not asked for are dropped.
func (g *LLMGrouper) Group(ctx context.Context, props []proposition.Proposition) ([]Candidate, error) {
	if len(props) < 2 {
		return nil, nil
	}
	if len(props) > g.limit {
		props = props[:g.limit]
	}
	known := make(map[string]struct{}, len(props))
	summary := make([]groupSummary, 0, len(props))
	for _, p := range props {
		known[p.MarketID] = struct{}{}
		summary = append(summary, groupSummary{
			MarketID:     p.MarketID,
			Title:        p.Title,
			Kind:         string(p.Kind),
			Underlier:    p.Underlier,
			Strike:       p.Strike,
			SymbolicForm: p.SymbolicForm,
		})
	}
	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, err
	}

	raw, err := g.client.Complete(ctx, groupSystemPrompt, groupPromptHeader+string(body)+"\n\n"+groupPromptSchema)
	if err != nil {
		return nil, err
	}
	var cands []Candidate
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw, "[", "]")), &cands); err != nil {
		return nil, fmt.Errorf("constraint: parse grouping output: %w", err)
	}

	out := cands[:0]
	for _, c := range cands {
		t, ok := ParseType(c.Type)
		if !ok || !groupable(t) {
			logging.Debugf("[constraint] dropping grouped candidate of type %q", c.Type)
			continue
		}
		if !allKnown(c.MarketIDs, known) {
			logging.Debugf("[constraint] dropping grouped candidate with unknown markets %v", c.MarketIDs)
			continue
		}
		c.Type = string(t)
		if strings.TrimSpace(c.Group) == "" {
			c.Group = "llm:" + string(t)
		}
		out = append(out, c)
	}
	return out, nil
}

func groupable(t Type) bool {
	switch t {
	case MonotonicLadder, Complement, Implication, MutualExclusion:
		return true
	default:
		return false
	}
}

func allKnown(ids []string, known map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return false
		}
	}
	return true
}

const groupSystemPrompt = `You find logical constraints between prediction markets. Respond with JSON only, no markdown.`

const groupPromptHeader = "Given these parsed propositions, identify logical constraints between them.\n\nPropositions:\n"

const groupPromptSchema = `Find:
1. Monotonic ladders: same underlier, different strikes (P(X>=100) >= P(X>=110)); list market_ids from least to most likely
2. Complements: YES/NO pairs that should sum to 1
3. Implications: if A happens B must happen (P(A) <= P(B)); list A first
4. Mutual exclusions: at most one can be true

Return a JSON array:
[{
  "constraint_type": "monotonic_ladder|complement|implication|mutual_exclusion",
  "market_ids": ["id1", "id2"],
  "relation": "human readable",
  "symbolic_form": "P(A) <= P(B)",
  "confidence": 0.0-1.0,
  "reasoning": "why this constraint exists"
}]`
