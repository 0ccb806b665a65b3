package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	c, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, defaultModel, c.Model())
}

func TestCompleteAgainstFakeEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  {\"ok\":true}  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "test-model", Timeout: 5 * time.Second})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	_, err = c.Complete(context.Background(), "", "user")
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ExtractJSON("```json\n{\"a\":1}\n```", "{", "}"))
	assert.Equal(t, `[1,2]`, ExtractJSON("here: [1,2] done", "[", "]"))
	assert.Equal(t, "nothing", ExtractJSON("nothing", "{", "}"))
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	s := "aé" // two-byte rune at the end
	assert.Equal(t, "a", Truncate(s, 2))
	assert.Equal(t, s, Truncate(s, 10))
}

func TestTruncateKeepsCompleteRunes(t *testing.T) {
	assert.Equal(t, "aé", Truncate("aéb", 3))
}
