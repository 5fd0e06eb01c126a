package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix namespaces all environment overrides.
	EnvPrefix = "TRADETALLY_"
)

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TRADETALLY_SERVER_HTTP_PORT, TRADETALLY_AUTH_SESSION_SECRET, ...)
//  2. Well-known provider variables (OPENAI_API_KEY, STRIPE_SECRET_KEY, STRIPE_WEBHOOK_SECRET)
//     when the namespaced value is unset
//  3. YAML config file (~/.config/tradetally/config.yaml)
//  4. Hardcoded defaults
//
// The file must live under ~/.config/tradetally/ or /etc/tradetally/, have
// 0600 or 0400 permissions and be at most 1MB. A missing file is not an error.
//
// Environment variables map onto keys by stripping the prefix, lowercasing
// and splitting on the first underscore:
//
//	TRADETALLY_SERVER_HTTP_PORT -> server.http_port
//	TRADETALLY_EXTRACTION_API_KEY -> extraction.api_key
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "tradetally", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyProviderEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps TRADETALLY_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// readConfigFile opens the file once and validates the descriptor to avoid a
// TOCTOU race between stat and read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "tradetally"),
		"/etc/tradetally",
	}
	for _, dir := range allowedDirs {
		if resolvedPath == dir || strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}

	return fmt.Errorf("config file must be in ~/.config/tradetally/ or /etc/tradetally/")
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyProviderEnv fills secrets from the variable names the providers document.
func applyProviderEnv(cfg *Config) {
	if !cfg.Extraction.APIKey.IsSet() {
		cfg.Extraction.APIKey = Secret(os.Getenv("OPENAI_API_KEY"))
	}
	if !cfg.Billing.StripeSecretKey.IsSet() {
		cfg.Billing.StripeSecretKey = Secret(os.Getenv("STRIPE_SECRET_KEY"))
	}
	if !cfg.Billing.WebhookSecret.IsSet() {
		cfg.Billing.WebhookSecret = Secret(os.Getenv("STRIPE_WEBHOOK_SECRET"))
	}
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.BodyLimit == "" {
		cfg.Server.BodyLimit = "26M"
	}
	cfg.Server.TrustedProxies = splitList(cfg.Server.TrustedProxies)

	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:8080"
	}
	cfg.App.BaseURL = strings.TrimRight(cfg.App.BaseURL, "/")
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "UTC"
	}

	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "tradetally"
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "tradetally.db"
	}
	if cfg.Storage.BlobRoot == "" {
		cfg.Storage.BlobRoot = "blobs"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "screenshots"
	}
	if cfg.Storage.SignedURLTTL == 0 {
		cfg.Storage.SignedURLTTL = time.Hour
	}

	if cfg.Extraction.Provider == "" {
		cfg.Extraction.Provider = "openai"
	}
	if cfg.Extraction.Model == "" {
		cfg.Extraction.Model = "gpt-4.1-nano"
	}
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 60 * time.Second
	}

	if cfg.Billing.BaseURL == "" {
		cfg.Billing.BaseURL = "https://api.stripe.com"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "tradetally"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "grpc"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// splitList flattens comma-separated entries, as environment variables
// deliver lists as one string.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
