// Tradetally serves the trading journal API.
//
// Configuration is read from ~/.config/tradetally/config.yaml (or the path
// given by --config) and overridden by TRADETALLY_* environment variables.
// See internal/config for details.
//
// Usage:
//
//	# Start the server with defaults
//	TRADETALLY_AUTH_SESSION_SECRET=... TRADETALLY_STORAGE_SIGNING_SECRET=... tradetally
//
//	# Print version information
//	tradetally version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tradetally/internal/auth"
	"github.com/fyrsmithlabs/tradetally/internal/billing"
	"github.com/fyrsmithlabs/tradetally/internal/blob"
	"github.com/fyrsmithlabs/tradetally/internal/config"
	"github.com/fyrsmithlabs/tradetally/internal/events"
	"github.com/fyrsmithlabs/tradetally/internal/extraction"
	httpserver "github.com/fyrsmithlabs/tradetally/internal/http"
	"github.com/fyrsmithlabs/tradetally/internal/logging"
	"github.com/fyrsmithlabs/tradetally/internal/storage/sqlite"
	"github.com/fyrsmithlabs/tradetally/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  tradetally           Start the tradetally server\n")
			fmt.Fprintf(os.Stderr, "  tradetally version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithFile(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if err := run(ctx, cfg); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("tradetally by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires every service from cfg and serves until ctx is cancelled.
//
//  1. Initializes telemetry and the logger
//  2. Opens the database and blob store
//  3. Builds the extractor, event publisher and billing service
//  4. Starts the HTTP server
//
// Returns http.ErrServerClosed on graceful shutdown.
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logCfg, err := logging.FromAppConfig(cfg.Logging, tel.IsEnabled())
	if err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting tradetally",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("timezone", cfg.App.Timezone),
		zap.Bool("telemetry", tel.IsEnabled()))

	store, err := sqlite.Open(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	blobs, err := blob.New(blob.Config{
		Root:    cfg.Storage.BlobRoot,
		Bucket:  cfg.Storage.Bucket,
		BaseURL: cfg.App.BaseURL,
		Secret:  cfg.Storage.SigningSecret.Value(),
		TTL:     cfg.Storage.SignedURLTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}
	defer blobs.Close()

	aliases, err := extraction.LoadAliases(cfg.Extraction.SymbolAliasesPath)
	if err != nil {
		return fmt.Errorf("failed to load symbol aliases: %w", err)
	}
	extractor, err := extraction.New(ctx, extraction.FromAppConfig(cfg.Extraction), aliases, logger.Named("extraction"))
	if err != nil {
		return fmt.Errorf("failed to initialize extractor: %w", err)
	}

	publisher, err := events.Connect(ctx, cfg.Events.NATSURL, logger.Named("events"))
	if err != nil {
		return fmt.Errorf("failed to connect event bus: %w", err)
	}
	defer publisher.Close()

	var stripe billing.StripeAPI
	if cfg.Billing.StripeSecretKey.IsSet() {
		client, err := billing.NewStripeClient(cfg.Billing.StripeSecretKey.Value(), cfg.Billing.BaseURL, logger.Named("billing"))
		if err != nil {
			return fmt.Errorf("failed to initialize stripe client: %w", err)
		}
		stripe = client
	} else {
		logger.Warn(ctx, "stripe secret key not set; billing portal and webhooks are limited")
	}

	billingSvc, err := billing.NewService(billing.ServiceConfig{
		Customers: store,
		Stripe:    stripe,
		Publisher: publisher,
		Logger:    logger,
		AppURL:    cfg.App.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize billing: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.Auth.SessionSecret.Value(), cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("failed to initialize session verifier: %w", err)
	}

	srv, err := httpserver.NewServer(logger, &httpserver.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		BodyLimit:       cfg.Server.BodyLimit,
		TrustedProxies:  cfg.Server.TrustedProxies,
		Location:        cfg.Location(),
		WebhookSecret:   cfg.Billing.WebhookSecret.Value(),
		ProPaymentLink:  cfg.Billing.ProPaymentLink,
	}, httpserver.Deps{
		Store:       store,
		Verifier:    verifier,
		Billing:     billingSvc,
		Blobs:       blobs,
		Extractor:   extractor,
		Publisher:   publisher,
		HTTPMetrics: httpserver.NewHTTPMetrics(tel.Meter(httpserver.InstrumentationName), logger),
		Tracer:      tel.Tracer(httpserver.InstrumentationName),
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	logger.Info(ctx, "server configured",
		zap.Bool("extraction", extractor.Available()),
		zap.Bool("stripe", stripe != nil),
		zap.Bool("events", cfg.Events.NATSURL != ""),
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)))

	return srv.Start(ctx)
}
