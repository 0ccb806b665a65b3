package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hetulpatel/surveillance/internal/llm"
)

// Extractor turns one market's title and rules into a draft result. A
// returned error is an extraction failure; callers synthesize an error
// record instead of surfacing it.
type Extractor interface {
	Extract(ctx context.Context, title, rulesText string) (Result, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, title, rulesText string) (Result, error)

func (f ExtractorFunc) Extract(ctx context.Context, title, rulesText string) (Result, error) {
	return f(ctx, title, rulesText)
}

// LLMExtractor prompts a chat model for a structured proposition.
type LLMExtractor struct {
	client llm.Completer
}

func NewLLMExtractor(client llm.Completer) (*LLMExtractor, error) {
	if client == nil {
		return nil, fmt.Errorf("extraction: llm client is required")
	}
	return &LLMExtractor{client: client}, nil
}

func (e *LLMExtractor) Extract(ctx context.Context, title, rulesText string) (Result, error) {
	prompt := buildExtractionPrompt(title, rulesText)
	raw, err := e.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return Result{}, err
	}
	return parseResult(raw)
}

func parseResult(raw string) (Result, error) {
	body := llm.ExtractJSON(raw, "{", "}")
	var res Result
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return Result{}, fmt.Errorf("extraction: parse model output: %w", err)
	}
	if strings.TrimSpace(res.PropositionType) == "" {
		return Result{}, fmt.Errorf("extraction: model output missing proposition_type")
	}
	// Some models echo an error object instead of failing the call.
	if res.Failed() {
		return Result{}, fmt.Errorf("extraction: model reported error: %s", res.Error)
	}
	return res, nil
}

func buildExtractionPrompt(title, rulesText string) string {
	var b strings.Builder
	b.WriteString("Analyze this prediction market:\n\n")
	fmt.Fprintf(&b, "Title: %s\n\n", strings.TrimSpace(title))
	b.WriteString("Rules:\n")
	b.WriteString(llm.Truncate(rulesText, llm.MaxRulesBytes))
	b.WriteString("\n\n")
	b.WriteString(extractionSchema)
	return b.String()
}

const systemPrompt = `You convert prediction market rules into symbolic logic.

Given a market's title and rules text, extract:
1. The proposition type (price_target, earnings_beat, election, sports, binary_event, other)
2. For price targets: the underlier asset, strike price and comparator
3. For earnings: company ticker and the metric being compared
4. The time window, if specified
5. A symbolic representation

Distinguish carefully:
- "BTC above $100k" is price_target with underlier=BTC, strike=100000, comparator=gte
- "Will AAPL beat earnings?" is earnings_beat with company_ticker=AAPL, not a price target
- "DOW hits 50k" is price_target with underlier=DJI, strike=50000, comparator=gte
- "Trump wins election" is election, not a price target

Respond with JSON only, no markdown.`

const extractionSchema = `Return ONLY valid JSON:
{
  "proposition_type": "price_target|earnings_beat|election|sports|binary_event|other",
  "underlier": "asset symbol or null",
  "strike": number or null,
  "comparator": "gte|lte|gt|lt|eq or null",
  "company_ticker": "ticker or null",
  "metric": "EPS|revenue|etc or null",
  "window_start": "YYYY-MM-DD or null",
  "window_end": "YYYY-MM-DD or null",
  "symbolic_form": "P(condition) format",
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation"
}`
