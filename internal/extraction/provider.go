package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tradetally/internal/config"
	"github.com/fyrsmithlabs/tradetally/internal/logging"
)

// Config selects and configures the extraction provider.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// FromAppConfig converts the application's extraction settings.
func FromAppConfig(c config.ExtractionConfig) Config {
	return Config{
		Provider: strings.ToLower(strings.TrimSpace(c.Provider)),
		APIKey:   c.APIKey.Value(),
		Model:    c.Model,
		BaseURL:  c.BaseURL,
		Timeout:  c.Timeout,
	}
}

// New creates an extractor for cfg.Provider. A disabled provider or a
// missing API key yields a NoOpExtractor.
func New(ctx context.Context, cfg Config, aliases Aliases, logger *logging.Logger) (Extractor, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	switch cfg.Provider {
	case "", "disabled":
		return &NoOpExtractor{}, nil
	case providerOpenAI, providerLangchain:
	default:
		return nil, fmt.Errorf("unknown extraction provider: %s", cfg.Provider)
	}

	if cfg.APIKey == "" {
		logger.Warn(ctx, "extraction API key missing; skipping extraction",
			zap.String("provider", cfg.Provider))
		return &NoOpExtractor{}, nil
	}

	if cfg.Provider == providerLangchain {
		return newLangchainClient(cfg, aliases)
	}
	return newOpenAIClient(cfg, aliases)
}

// NoOpExtractor never extracts anything.
type NoOpExtractor struct{}

// Extract returns nil, nil.
func (n *NoOpExtractor) Extract(ctx context.Context, imageURL string) (*ExtractedTrade, error) {
	return nil, nil
}

// Available returns false.
func (n *NoOpExtractor) Available() bool {
	return false
}

var _ Extractor = (*NoOpExtractor)(nil)
