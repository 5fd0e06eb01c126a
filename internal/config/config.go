// Package config provides configuration loading for tradetally.
//
// Configuration is read from an optional YAML file and overridden by
// environment variables. See LoadWithFile for precedence rules.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// Config holds the complete tradetally configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	App           AppConfig           `koanf:"app"`
	Auth          AuthConfig          `koanf:"auth"`
	Storage       StorageConfig       `koanf:"storage"`
	Extraction    ExtractionConfig    `koanf:"extraction"`
	Billing       BillingConfig       `koanf:"billing"`
	Events        EventsConfig        `koanf:"events"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	BodyLimit       string        `koanf:"body_limit"`
	// TrustedProxies are CIDRs or addresses, beyond loopback and private
	// ranges, whose X-Forwarded-For hops are believed.
	TrustedProxies  []string      `koanf:"trusted_proxies"`
}

// AppConfig holds settings that shape user-facing behavior.
type AppConfig struct {
	// BaseURL is the public origin used for redirects and signed URLs.
	BaseURL string `koanf:"base_url"`
	// Timezone is the IANA zone used to bucket trades into calendar days.
	Timezone string `koanf:"timezone"`
}

// AuthConfig holds session verification settings.
type AuthConfig struct {
	SessionSecret Secret        `koanf:"session_secret"`
	Issuer        string        `koanf:"issuer"`
	TokenTTL      time.Duration `koanf:"token_ttl"`
}

// StorageConfig holds database and object storage settings.
type StorageConfig struct {
	DatabasePath  string        `koanf:"database_path"`
	BlobRoot      string        `koanf:"blob_root"`
	Bucket        string        `koanf:"bucket"`
	SigningSecret Secret        `koanf:"signing_secret"`
	SignedURLTTL  time.Duration `koanf:"signed_url_ttl"`
}

// ExtractionConfig holds vision model settings for screenshot extraction.
type ExtractionConfig struct {
	Provider          string        `koanf:"provider"` // openai, langchain, disabled
	APIKey            Secret        `koanf:"api_key"`
	Model             string        `koanf:"model"`
	BaseURL           string        `koanf:"base_url"`
	Timeout           time.Duration `koanf:"timeout"`
	SymbolAliasesPath string        `koanf:"symbol_aliases_path"`
}

// BillingConfig holds payment provider settings.
type BillingConfig struct {
	StripeSecretKey Secret `koanf:"stripe_secret_key"`
	WebhookSecret   Secret `koanf:"webhook_secret"`
	BaseURL         string `koanf:"base_url"`
	ProPaymentLink  string `koanf:"pro_payment_link"`
}

// EventsConfig holds domain event publishing settings.
type EventsConfig struct {
	// NATSURL disables publishing when empty.
	NATSURL string `koanf:"nats_url"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPProtocol    string `koanf:"otlp_protocol"` // grpc or http/protobuf
	Insecure        bool   `koanf:"insecure"`
}

// LoggingConfig holds the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

var validProviders = map[string]bool{
	"openai":    true,
	"langchain": true,
	"disabled":  true,
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Location resolves App.Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Session or signing secrets are missing
//   - Timezone cannot be loaded
//   - Extraction provider or OTLP protocol is unknown
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	for _, p := range c.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			return fmt.Errorf("invalid trusted proxy %q", p)
		}
	}

	if _, err := url.ParseRequestURI(c.App.BaseURL); err != nil {
		return fmt.Errorf("invalid app base url %q: %w", c.App.BaseURL, err)
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.App.Timezone, err)
	}

	if !c.Auth.SessionSecret.IsSet() {
		return errors.New("auth.session_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}

	if strings.TrimSpace(c.Storage.DatabasePath) == "" {
		return errors.New("storage.database_path is required")
	}
	if !c.Storage.SigningSecret.IsSet() {
		return errors.New("storage.signing_secret is required")
	}
	if c.Storage.SignedURLTTL <= 0 {
		return errors.New("storage.signed_url_ttl must be positive")
	}

	if !validProviders[c.Extraction.Provider] {
		return fmt.Errorf("unknown extraction provider: %q", c.Extraction.Provider)
	}
	if c.Extraction.Timeout <= 0 {
		return errors.New("extraction.timeout must be positive")
	}

	if c.Observability.EnableTelemetry {
		if c.Observability.ServiceName == "" {
			return errors.New("service name required when telemetry is enabled")
		}
		switch c.Observability.OTLPProtocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("unknown otlp protocol: %q", c.Observability.OTLPProtocol)
		}
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}
