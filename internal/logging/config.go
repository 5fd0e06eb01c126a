package logging

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/tradetally/internal/config"
	"go.uber.org/zap/zapcore"
)

// TraceLevel is a custom level below Debug for wire-level detail.
const TraceLevel = zapcore.Level(-2)

// Config holds logging configuration.
type Config struct {
	Level      zapcore.Level
	Format     string
	Output     OutputConfig
	Sampling   SamplingConfig
	Caller     bool
	Stacktrace zapcore.Level
	Fields     map[string]string
	Redaction  RedactionConfig
}

// OutputConfig controls where logs are written.
type OutputConfig struct {
	Stdout bool
	OTEL   bool
}

// SamplingConfig controls log volume reduction below error level.
type SamplingConfig struct {
	Enabled    bool
	Tick       time.Duration
	Initial    int
	Thereafter int
}

// RedactionConfig controls sensitive data redaction.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// defaultSensitiveFields covers credentials that flow through the trade,
// billing and extraction paths.
var defaultSensitiveFields = []string{
	"password", "secret", "token", "api_key", "authorization",
	"bearer", "cookie", "stripe_signature", "signing_secret",
	"__session", "session_secret", "webhook_secret",
}

var defaultSensitivePatterns = []string{
	`(?i)bearer\s+\S+`,
	`(?i)\bsk_(live|test)_[A-Za-z0-9]+`,
	`(?i)\bwhsec_[A-Za-z0-9]+`,
	`(?i)api[_-]?key[=:]\s*\S+`,
	`\beyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`,
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Caller:     true,
		Stacktrace: zapcore.ErrorLevel,
		Fields:     map[string]string{"service": "tradetally"},
		Redaction: RedactionConfig{
			Enabled:  true,
			Fields:   append([]string(nil), defaultSensitiveFields...),
			Patterns: append([]string(nil), defaultSensitivePatterns...),
		},
	}
}

// FromAppConfig derives a logging config from the operator-facing settings.
func FromAppConfig(cfg config.LoggingConfig, otel bool) (*Config, error) {
	lc := NewDefaultConfig()
	level, err := LevelFromString(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	lc.Level = level
	if cfg.Format != "" {
		lc.Format = cfg.Format
	}
	lc.Output.OTEL = otel
	return lc, nil
}

// LevelFromString parses a level name, accepting "trace".
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout or otel)")
	}
	if c.Sampling.Enabled && c.Sampling.Tick <= 0 {
		return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
	}
	if c.Redaction.Enabled {
		if _, err := compilePatterns(c.Redaction.Patterns); err != nil {
			return err
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("constant field %q must have a non-empty key and value", k)
		}
	}
	return nil
}
