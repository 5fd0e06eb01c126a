package extraction

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

func newTestLangchainClient(t *testing.T, baseURL string, aliases Aliases) *langchainClient {
	t.Helper()
	c, err := newLangchainClient(Config{
		Provider: providerLangchain,
		APIKey:   "sk-test",
		BaseURL:  baseURL,
		Timeout:  5 * time.Second,
	}, aliases)
	require.NoError(t, err)
	return c
}

func TestNewLangchainClient(t *testing.T) {
	_, err := newLangchainClient(Config{}, nil)
	assert.Error(t, err)

	c, err := newLangchainClient(Config{APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.True(t, c.Available())
	assert.Equal(t, defaultTimeout, c.timeout)
}

func TestLangchainClient_Extract(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatReply("```json\n" + `{"symbol":"gold","position":"buy","entry_prices":["2350.5"],"stop_loss":2340,"take_profit":[2360,"2370"]}` + "\n```"))
	}))
	defer server.Close()

	c := newTestLangchainClient(t, server.URL, Aliases{"GOLD": "XAUUSD"})
	got, err := c.Extract(context.Background(), "https://app.example.com/storage/v1/object/sign/screenshots?obj=u%2F1.png")
	require.NoError(t, err)

	assert.Equal(t, "XAUUSD", got.Symbol)
	assert.Equal(t, "long", string(got.Direction))
	assert.True(t, got.Entry.Decimal.Equal(dec("2350.5")))
	assert.True(t, got.Stop.Decimal.Equal(dec("2340")))
	require.Len(t, got.Targets, 2)
	assert.True(t, got.Targets[1].Equal(dec("2370")))

	assert.Equal(t, defaultOpenAIModel, captured["model"])
	messages, ok := captured["messages"].([]any)
	require.True(t, ok, "messages: %v", captured["messages"])
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])

	user := messages[1].(map[string]any)
	assert.Equal(t, "user", user["role"])
	parts, ok := user["content"].([]any)
	require.True(t, ok, "user content is multi-part: %v", user["content"])
	require.Len(t, parts, 2)

	text := parts[0].(map[string]any)
	assert.Equal(t, "text", text["type"])
	assert.Equal(t, userPrompt, text["text"])

	image := parts[1].(map[string]any)
	assert.Equal(t, "image_url", image["type"])
	imageURL, ok := image["image_url"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://app.example.com/storage/v1/object/sign/screenshots?obj=u%2F1.png", imageURL["url"])
}

func TestLangchainClient_Extract_Errors(t *testing.T) {
	t.Run("model error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"image too large","type":"invalid_request_error"}}`))
		}))
		defer server.Close()

		_, err := newTestLangchainClient(t, server.URL, nil).Extract(context.Background(), "https://cdn.example.com/a.png")
		assert.Error(t, err)
	})

	t.Run("reply is not json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(chatReply("I could not read this chart."))
		}))
		defer server.Close()

		_, err := newTestLangchainClient(t, server.URL, nil).Extract(context.Background(), "https://cdn.example.com/a.png")
		assert.Error(t, err)
	})

	t.Run("requires an image url", func(t *testing.T) {
		c := newTestLangchainClient(t, "http://127.0.0.1:1", nil)
		_, err := c.Extract(context.Background(), "  ")
		assert.Error(t, err)
	})
}
