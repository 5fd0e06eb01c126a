package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const providerLangchain = "langchain"

// langchainClient sends the extraction prompt through langchaingo.
type langchainClient struct {
	llm     llms.Model
	timeout time.Duration
	aliases Aliases
	metrics *Metrics
}

func newLangchainClient(cfg Config, aliases Aliases) (*langchainClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
	}
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		opts = append(opts, openai.WithBaseURL(base))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create langchain openai model: %w", err)
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	return &langchainClient{llm: llm, timeout: timeout, aliases: aliases, metrics: NewMetrics()}, nil
}

// Extract sends imageURL to the model and normalizes the reply.
func (l *langchainClient) Extract(ctx context.Context, imageURL string) (*ExtractedTrade, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, fmt.Errorf("image url is required")
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	started := time.Now()
	messages := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: systemPrompt}},
		},
		{
			Role: schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextContent{Text: userPrompt},
				llms.ImageURLContent{URL: imageURL},
			},
		},
	}

	resp, err := l.llm.GenerateContent(ctx, messages,
		llms.WithMaxTokens(defaultMaxTokens),
		llms.WithTemperature(0),
	)
	if err != nil {
		l.metrics.observe(providerLangchain, "error", started)
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		l.metrics.observe(providerLangchain, "error", started)
		return nil, ErrEmptyResponse
	}

	out, err := Normalize([]byte(resp.Choices[0].Content))
	if err != nil {
		l.metrics.observe(providerLangchain, "invalid", started)
		return nil, err
	}
	out.Symbol = l.aliases.Resolve(out.Symbol)
	l.metrics.observe(providerLangchain, "ok", started)
	return out, nil
}

// Available returns true once a model is constructed.
func (l *langchainClient) Available() bool {
	return l.llm != nil
}

var _ Extractor = (*langchainClient)(nil)
