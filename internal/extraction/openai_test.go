package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func now() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }

func chatReply(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return b
}

func newTestOpenAIClient(t *testing.T, baseURL string, aliases Aliases) *openAIClient {
	t.Helper()
	c, err := newOpenAIClient(Config{APIKey: "sk-test", BaseURL: baseURL, Timeout: 5 * time.Second}, aliases)
	require.NoError(t, err)
	c.baseBackoff = time.Millisecond
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestNewOpenAIClient(t *testing.T) {
	_, err := newOpenAIClient(Config{}, nil)
	assert.Error(t, err, "API key is required")

	c, err := newOpenAIClient(Config{APIKey: "sk-test", BaseURL: "https://proxy.example.com/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultOpenAIModel, c.model)
	assert.Equal(t, "https://proxy.example.com", c.baseURL)
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)
	assert.True(t, c.Available())
}

func TestOpenAIClient_Extract(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write(chatReply(`{"symbol":"gold","position":"sell","entry_prices":[2350.5],"take_profit":[2300]}`))
	}))
	defer server.Close()

	c := newTestOpenAIClient(t, server.URL, Aliases{"GOLD": "XAUUSD"})
	got, err := c.Extract(context.Background(), "https://cdn.example.com/shot.png?token=abc")
	require.NoError(t, err)

	assert.Equal(t, "XAUUSD", got.Symbol)
	assert.Equal(t, "short", string(got.Direction))
	assert.True(t, got.Entry.Decimal.Equal(dec("2350.5")))

	assert.Equal(t, defaultOpenAIModel, captured.Model)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	user := captured.Messages[1]
	require.Len(t, user.Content, 2)
	assert.Equal(t, userPrompt, user.Content[0].Text)
	require.NotNil(t, user.Content[1].ImageURL)
	assert.Equal(t, "https://cdn.example.com/shot.png?token=abc", user.Content[1].ImageURL.URL)
	assert.Equal(t, "auto", user.Content[1].ImageURL.Detail)
}

func TestOpenAIClient_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write(chatReply(`{"symbol":"BTCUSD"}`))
		}
	}))
	defer server.Close()

	c := newTestOpenAIClient(t, server.URL, nil)
	got, err := c.Extract(context.Background(), "https://x/y.png")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD", got.Symbol)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	}))
	defer server.Close()

	c := newTestOpenAIClient(t, server.URL, nil)
	_, err := c.Extract(context.Background(), "https://x/y.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestOpenAIClient(t, server.URL, nil)
	_, err := c.Extract(context.Background(), "https://x/y.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(defaultMaxRetries+1), calls.Load())
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := newTestOpenAIClient(t, server.URL, nil)
	_, err := c.Extract(context.Background(), "https://x/y.png")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIClient_RequiresImageURL(t *testing.T) {
	c := newTestOpenAIClient(t, "http://127.0.0.1:1", nil)
	_, err := c.Extract(context.Background(), " ")
	assert.Error(t, err)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&retryableError{err: assert.AnError}))
	assert.False(t, isRetryableError(assert.AnError))
	assert.False(t, isRetryableError(nil))
}
