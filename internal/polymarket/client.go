// Package polymarket lists open Polymarket markets with their rules text and
// top-of-book quotes from the CLOB.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/surveillance/internal/collectors"
	"github.com/hetulpatel/surveillance/internal/logging"
)

const (
	defaultBaseURL = "https://gamma-api.polymarket.com/events"
	defaultBookURL = "https://clob.polymarket.com/book"
)

// Client fetches Polymarket events and CLOB books.
type Client struct {
	baseURL    string
	bookURL    string
	httpClient *http.Client
	nextOffset int
}

// Config controls optional overrides for the client.
type Config struct {
	BaseURL string
	BookURL string
	Timeout time.Duration
}

// NewClient builds a Polymarket client with sane defaults.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	book := cfg.BookURL
	if book == "" {
		book = defaultBookURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    base,
		bookURL:    book,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string {
	return string(collectors.VenuePolymarket)
}

// Fetch retrieves one page of open events and advances the internal offset.
// When the end of results is reached the offset is reset to start over.
func (c *Client) Fetch(ctx context.Context, opts collectors.FetchOptions) ([]collectors.Market, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	list, err := c.listEvents(ctx, pageSize, c.nextOffset)
	if err != nil {
		return nil, fmt.Errorf("polymarket list events: %w", err)
	}
	if len(list) < pageSize {
		logging.Infof("[polymarket] reached end of events, resetting offset")
		c.nextOffset = 0
	} else {
		c.nextOffset += pageSize
	}

	var markets []collectors.Market
	for _, ev := range list {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ev.Closed {
			continue
		}
		markets = append(markets, c.normalizeEvent(ctx, &ev, opts.Books)...)
	}
	logging.Debugf("[polymarket] %d events -> %d markets", len(list), len(markets))
	return markets, nil
}

func (c *Client) listEvents(ctx context.Context, limit, offset int) ([]event, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("closed", "false")
	u.RawQuery = q.Encode()

	var events []event
	if err := collectors.GetJSON(ctx, c.httpClient, "polymarket", u.String(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) fetchTopOfBook(ctx context.Context, tokenID string) (bid, ask float64, err error) {
	u, err := url.Parse(c.bookURL)
	if err != nil {
		return 0, 0, err
	}
	q := u.Query()
	q.Set("token_id", tokenID)
	u.RawQuery = q.Encode()

	var book clobBook
	if err := collectors.GetJSON(ctx, c.httpClient, "polymarket", u.String(), &book); err != nil {
		return 0, 0, err
	}
	return book.best()
}

func (c *Client) normalizeEvent(ctx context.Context, ev *event, books bool) []collectors.Market {
	var out []collectors.Market
	for i := range ev.Markets {
		m := &ev.Markets[i]
		if m.Closed || !m.Active || isPlaceholderMarket(m) {
			continue
		}
		out = append(out, c.normalizeMarket(ctx, ev, m, books))
	}
	return out
}

func (c *Client) normalizeMarket(ctx context.Context, ev *event, m *market, books bool) collectors.Market {
	rules := strings.TrimSpace(m.Description)
	if rules == "" {
		rules = strings.TrimSpace(ev.Description)
	}
	source := m.ResolutionSource
	if source == "" {
		source = ev.ResolutionSource
	}
	closeTime := parseTime(m.EndDate)
	if closeTime.IsZero() {
		closeTime = parseTime(ev.EndDate)
	}

	out := collectors.Market{
		Venue:            collectors.VenuePolymarket,
		EventID:          ev.ID,
		MarketID:         m.ID,
		Title:            m.Question,
		RulesText:        rules,
		ResolutionSource: source,
		CloseTime:        closeTime,
	}
	if !books {
		return out
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for idx, tokenID := range parseClobTokenIDs(m.ClobTokenIds) {
		if tokenID == "" {
			continue
		}
		bid, ask, err := c.fetchTopOfBook(ctxWithTimeout, tokenID)
		if err != nil {
			logging.Debugf("[polymarket] book %s for market %s: %v", tokenID, m.ID, err)
			continue
		}
		out.Outcomes = append(out.Outcomes, collectors.Outcome{ID: strconv.Itoa(idx), BestBid: bid, BestAsk: ask})
	}
	return out
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func parseClobTokenIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

var placeholderQuestionRe = regexp.MustCompile(`(?i)^will\s+\w+\s+[a-z]\b`)

func isPlaceholderMarket(m *market) bool {
	if placeholderQuestionRe.MatchString(strings.TrimSpace(m.Question)) {
		return true
	}
	desc := strings.ToLower(m.Description)
	return strings.Contains(desc, "may be updated to replace") || strings.Contains(desc, "placeholder")
}

type event struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	ResolutionSource string   `json:"resolutionSource"`
	Closed           bool     `json:"closed"`
	EndDate          string   `json:"endDate"`
	Markets          []market `json:"markets"`
}

type market struct {
	ID               string `json:"id"`
	Question         string `json:"question"`
	Description      string `json:"description"`
	ResolutionSource string `json:"resolutionSource"`
	ClobTokenIds     string `json:"clobTokenIds"`
	EndDate          string `json:"endDate"`
	Active           bool   `json:"active"`
	Closed           bool   `json:"closed"`
}

type clobBook struct {
	Bids []clobLevel `json:"bids"`
	Asks []clobLevel `json:"asks"`
}

type clobLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// best returns the highest bid and lowest ask; the CLOB does not promise an
// ordering of levels.
func (b clobBook) best() (bid, ask float64, err error) {
	for _, lvl := range b.Bids {
		p, perr := strconv.ParseFloat(lvl.Price, 64)
		if perr != nil {
			return 0, 0, fmt.Errorf("bid price %q: %w", lvl.Price, perr)
		}
		if p > bid {
			bid = p
		}
	}
	for _, lvl := range b.Asks {
		p, perr := strconv.ParseFloat(lvl.Price, 64)
		if perr != nil {
			return 0, 0, fmt.Errorf("ask price %q: %w", lvl.Price, perr)
		}
		if ask == 0 || p < ask {
			ask = p
		}
	}
	return bid, ask, nil
}
