package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "gpt-4.1-nano"
	defaultMaxTokens     = 1024
	defaultTimeout       = 60 * time.Second
	defaultMaxRetries    = 3
	defaultBaseBackoff   = 1 * time.Second
)

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

const providerOpenAI = "openai"

// openAIClient calls the chat-completions endpoint with an image part.
type openAIClient struct {
	model       string
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	aliases     Aliases
	metrics     *Metrics
}

func newOpenAIClient(cfg Config, aliases Aliases) (*openAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	return &openAIClient{
		model:   model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		aliases:     aliases,
		metrics:     NewMetrics(),
	}, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Extract sends imageURL to the model and normalizes the reply.
func (o *openAIClient) Extract(ctx context.Context, imageURL string) (*ExtractedTrade, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, fmt.Errorf("image url is required")
	}

	started := time.Now()
	content, err := o.complete(ctx, o.buildRequest(imageURL))
	if err != nil {
		o.metrics.observe(providerOpenAI, "error", started)
		return nil, err
	}

	out, err := Normalize([]byte(content))
	if err != nil {
		o.metrics.observe(providerOpenAI, "invalid", started)
		return nil, err
	}
	out.Symbol = o.aliases.Resolve(out.Symbol)
	o.metrics.observe(providerOpenAI, "ok", started)
	return out, nil
}

// Available returns true when an API key is configured.
func (o *openAIClient) Available() bool {
	return o.apiKey != ""
}

func (o *openAIClient) buildRequest(url string) chatRequest {
	return chatRequest{
		Model:     o.model,
		MaxTokens: defaultMaxTokens,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: []contentPart{{Type: "text", Text: systemPrompt}},
			},
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: userPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: url, Detail: "auto"}},
				},
			},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
}

func (o *openAIClient) complete(ctx context.Context, req chatRequest) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			o.metrics.retried(providerOpenAI)
			backoff := o.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		content, err := o.doRequest(ctx, req)
		if err == nil {
			return content, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (o *openAIClient) doRequest(ctx context.Context, req chatRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp openAIError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return chatResp.Choices[0].Message.Content, nil
}

// retryableError marks transport failures, 429s and 5xx responses.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

var _ Extractor = (*openAIClient)(nil)
