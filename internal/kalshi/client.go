// Package kalshi lists open Kalshi markets with their rules text and quotes
// through the Trade API.
package kalshi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/surveillance/internal/collectors"
	"github.com/hetulpatel/surveillance/internal/logging"
)

const defaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2/events"

// Client talks to the Kalshi Trade API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	nextCursor string
}

// Config provides optional overrides.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient builds a configured Kalshi API client.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string {
	return string(collectors.VenueKalshi)
}

// Fetch retrieves one page of open events with nested markets and advances
// the cursor. Kalshi quotes ride along on the market listing, so Books has
// no effect.
func (c *Client) Fetch(ctx context.Context, opts collectors.FetchOptions) ([]collectors.Market, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	if pageSize > 200 {
		pageSize = 200 // API limit
	}

	resp, err := c.listEvents(ctx, pageSize, c.nextCursor)
	if err != nil {
		return nil, fmt.Errorf("list kalshi events: %w", err)
	}
	c.nextCursor = resp.Cursor
	if c.nextCursor == "" {
		logging.Infof("[kalshi] reached end of events, resetting cursor")
	}

	var markets []collectors.Market
	for i := range resp.Events {
		markets = append(markets, normalizeEvent(&resp.Events[i])...)
	}
	logging.Debugf("[kalshi] %d events -> %d markets", len(resp.Events), len(markets))
	return markets, nil
}

func (c *Client) listEvents(ctx context.Context, limit int, cursor string) (*eventsResponse, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("status", "open")
	q.Set("with_nested_markets", "true")
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()

	var out eventsResponse
	if err := collectors.GetJSON(ctx, c.httpClient, "kalshi", u.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func normalizeEvent(ev *event) []collectors.Market {
	var out []collectors.Market
	for i := range ev.Markets {
		m := &ev.Markets[i]
		if m.Status != "active" {
			continue
		}
		out = append(out, normalizeMarket(ev, m))
	}
	return out
}

func normalizeMarket(ev *event, m *market) collectors.Market {
	rules := joinRules(m.RulesPrimary, m.RulesSecondary)
	if rules == "" {
		rules = joinRules(ev.RulesPrimary, ev.RulesSecondary)
	}
	closeTime, _ := time.Parse(time.RFC3339, m.CloseTime)
	if closeTime.IsZero() {
		closeTime, _ = time.Parse(time.RFC3339, ev.CloseTime)
	}

	return collectors.Market{
		Venue:            collectors.VenueKalshi,
		EventID:          ev.Ticker,
		MarketID:         m.Ticker,
		Title:            deriveQuestion(ev.Title, m),
		RulesText:        rules,
		ResolutionSource: strings.Join(ev.SettlementSources, ", "),
		CloseTime:        closeTime,
		Outcomes: []collectors.Outcome{
			{ID: "yes", BestBid: centsToFloat(m.YesBid), BestAsk: centsToFloat(m.YesAsk)},
			{ID: "no", BestBid: centsToFloat(m.NoBid), BestAsk: centsToFloat(m.NoAsk)},
		},
	}
}

func joinRules(primary, secondary string) string {
	return strings.TrimSpace(strings.TrimSpace(primary) + "\n" + strings.TrimSpace(secondary))
}

func centsToFloat(v int64) float64 {
	return float64(v) / 100.0
}

type eventsResponse struct {
	Events []event `json:"events"`
	Cursor string  `json:"cursor"`
}

type event struct {
	Ticker            string   `json:"event_ticker"`
	Title             string   `json:"title"`
	CloseTime         string   `json:"close_time"`
	SettlementSources []string `json:"settlement_sources"`
	RulesPrimary      string   `json:"rules_primary"`
	RulesSecondary    string   `json:"rules_secondary"`
	Markets           []market `json:"markets"`
}

type market struct {
	Ticker         string `json:"ticker"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	YesAsk         int64  `json:"yes_ask"`
	YesBid         int64  `json:"yes_bid"`
	NoAsk          int64  `json:"no_ask"`
	NoBid          int64  `json:"no_bid"`
	RulesPrimary   string `json:"rules_primary"`
	RulesSecondary string `json:"rules_secondary"`
	CloseTime      string `json:"close_time"`
}

// deriveQuestion fills the entity into templated market titles such as
// "Will  become ..." using the rules text, the event title or the ticker.
func deriveQuestion(eventTitle string, m *market) string {
	base := m.Title

	alias := extractEntityFromRules(m.RulesPrimary)
	if alias == "" {
		alias = extractEntityFromTitle(eventTitle)
	}
	if alias == "" && strings.Contains(base, "  ") {
		alias = extractEntityFromTitle(base)
	}
	if alias == "" {
		if parts := strings.Split(m.Ticker, "-"); len(parts) > 0 {
			alias = parts[len(parts)-1]
		}
	}
	if alias == "" || strings.Contains(strings.ToLower(base), strings.ToLower(alias)) {
		return base
	}
	if strings.Contains(base, "  ") {
		return strings.Replace(base, "  ", " "+alias+" ", 1)
	}
	return fmt.Sprintf("%s (%s)", base, alias)
}

var ruleVerbs = []string{" becomes", " is ", " wins", " will ", " reaches", " secures", " scores", " resigns", " retires", " defeats", " beats", " finishes", " captures", " takes", " makes", " receives", " gets "}

func extractEntityFromRules(rule string) string {
	rule = strings.TrimSpace(rule)
	if !strings.HasPrefix(strings.ToLower(rule), "if ") {
		return ""
	}
	trimmed := strings.TrimSpace(rule[3:])
	lower := strings.ToLower(trimmed)
	pos := -1
	for _, kw := range ruleVerbs {
		if idx := strings.Index(lower, kw); idx != -1 && (pos == -1 || idx < pos) {
			pos = idx
		}
	}
	if pos == -1 {
		if idx := strings.Index(lower, ","); idx != -1 {
			pos = idx
		} else if idx := strings.Index(lower, " then"); idx != -1 {
			pos = idx
		} else {
			pos = len(trimmed)
		}
	}
	return strings.Trim(strings.TrimSpace(trimmed[:pos]), `"'`)
}

func extractEntityFromTitle(title string) string {
	title = strings.TrimSpace(title)
	if !strings.HasPrefix(strings.ToLower(title), "will ") {
		return ""
	}
	title = title[5:]
	lower := strings.ToLower(title)
	end := strings.Index(lower, " become")
	if end == -1 {
		end = strings.Index(lower, " be ")
	}
	if end == -1 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(title[:end]), `"'`)
}
