package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/surveillance/internal/collectors"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		events := []map[string]any{
			{
				"id":               "ev1",
				"title":            "Bitcoin above ___ on Dec 31?",
				"description":      "event level rules",
				"resolutionSource": "Coinbase BTC-USD",
				"endDate":          "2025-12-31T00:00:00Z",
				"markets": []map[string]any{
					{"id": "m1", "question": "Bitcoin above $100k on Dec 31?", "description": "Resolves Yes if BTC >= 100000.", "clobTokenIds": `["tok-yes","tok-no"]`, "active": true},
					{"id": "m2", "question": "Bitcoin above $120k on Dec 31?", "description": "", "active": true},
					{"id": "m3", "question": "Closed market", "description": "x", "active": true, "closed": true},
					{"id": "m4", "question": "Will Person A win?", "description": "placeholder", "active": true},
				},
			},
			{"id": "ev2", "title": "closed", "closed": true},
		}
		require.NoError(t, json.NewEncoder(w).Encode(events))
	})
	mux.HandleFunc("/book", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_id") != "tok-yes" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"bids":[{"price":"0.40","size":"10"},{"price":"0.42","size":"5"}],"asks":[{"price":"0.47","size":"3"},{"price":"0.45","size":"1"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchNormalizesMarkets(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(Config{BaseURL: srv.URL + "/events", BookURL: srv.URL + "/book"})

	markets, err := client.Fetch(context.Background(), collectors.FetchOptions{PageSize: 10, Books: true})
	require.NoError(t, err)
	require.Len(t, markets, 2)

	m1 := markets[0]
	assert.Equal(t, "m1", m1.MarketID)
	assert.Equal(t, "ev1", m1.EventID)
	assert.Equal(t, "Resolves Yes if BTC >= 100000.", m1.RulesText)
	assert.Equal(t, "Coinbase BTC-USD", m1.ResolutionSource)
	require.Len(t, m1.Outcomes, 1)
	assert.Equal(t, collectors.Outcome{ID: "0", BestBid: 0.42, BestAsk: 0.45}, m1.Outcomes[0])

	m2 := markets[1]
	assert.Equal(t, "event level rules", m2.RulesText)
	assert.Equal(t, 2025, m2.CloseTime.Year())
	assert.Empty(t, m2.Outcomes)
}

func TestFetchWithoutBooks(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(Config{BaseURL: srv.URL + "/events", BookURL: srv.URL + "/book"})

	markets, err := client.Fetch(context.Background(), collectors.FetchOptions{PageSize: 10})
	require.NoError(t, err)
	for _, m := range markets {
		assert.Empty(t, m.Outcomes)
	}
}

func TestIsPlaceholderMarket(t *testing.T) {
	assert.True(t, isPlaceholderMarket(&market{Question: "Will Person X win?"}))
	assert.True(t, isPlaceholderMarket(&market{Question: "Who wins?", Description: "This market may be updated to replace..."}))
	assert.False(t, isPlaceholderMarket(&market{Question: "Will Bitcoin reach $100k?"}))
}
