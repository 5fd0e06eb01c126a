// Package http provides the tradetally JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tradetally/internal/auth"
	"github.com/fyrsmithlabs/tradetally/internal/billing"
	"github.com/fyrsmithlabs/tradetally/internal/blob"
	"github.com/fyrsmithlabs/tradetally/internal/events"
	"github.com/fyrsmithlabs/tradetally/internal/extraction"
	"github.com/fyrsmithlabs/tradetally/internal/logging"
	"github.com/fyrsmithlabs/tradetally/internal/storage"
)

// Server serves the tradetally API.
type Server struct {
	echo      *echo.Echo
	logger    *logging.Logger
	config    *Config
	store     storage.Store
	verifier  *auth.Verifier
	billing   *billing.Service
	blobs     *blob.Store
	extractor extraction.Extractor
	publisher events.Publisher
	metrics   *DomainMetrics
	limiters  *ipLimiters
	now       func() time.Time
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	// BodyLimit caps request bodies, for example "26M".
	BodyLimit string
	// Location buckets trades into calendar days.
	Location       *time.Location
	WebhookSecret  string
	ProPaymentLink string
	// TrustedProxies are extra CIDRs or addresses whose X-Forwarded-For
	// hops are believed.
	TrustedProxies []string
}

// Deps are the services behind the API.
type Deps struct {
	Store     storage.Store
	Verifier  *auth.Verifier
	Billing   *billing.Service
	Blobs     *blob.Store
	Extractor extraction.Extractor
	Publisher events.Publisher
	// HTTPMetrics defaults to metrics on the global meter provider.
	HTTPMetrics *HTTPMetrics
	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer
}

// NewServer creates a new HTTP server.
func NewServer(logger *logging.Logger, cfg *Config, deps Deps) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("session verifier is required")
	}
	if deps.Billing == nil {
		return nil, errors.New("billing service is required")
	}
	if deps.Blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if deps.Extractor == nil {
		deps.Extractor = &extraction.NoOpExtractor{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.HTTPMetrics == nil {
		deps.HTTPMetrics = NewHTTPMetrics(nil, logger)
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(InstrumentationName)
	}

	extractIP, err := ipExtractor(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = extractIP

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(tracing(deps.Tracer))
	e.Use(requestContext(logger))
	e.Use(requestLog(logger))
	e.Use(deps.HTTPMetrics.MetricsMiddleware())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	s := &Server{
		echo:      e,
		logger:    logger,
		config:    cfg,
		store:     deps.Store,
		verifier:  deps.Verifier,
		billing:   deps.Billing,
		blobs:     deps.Blobs,
		extractor: deps.Extractor,
		publisher: deps.Publisher,
		metrics:   NewDomainMetrics(),
		limiters:  newIPLimiters(),
		now:       time.Now,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.GET(blob.SignPrefix+":bucket", s.handleSignedObject)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/webhooks/stripe", s.handleStripeWebhook)

	// Route-level middleware keeps unknown /api/v1 paths answering 404.
	user := auth.Require(s.verifier)
	pro := auth.RequireMembership(s.billing, billing.MembershipPro, s.logger)

	v1.GET("/me", s.handleMe, user)

	v1.GET("/trades", s.handleListTrades, user)
	v1.POST("/trades", s.handleCreateTrade, user)
	v1.GET("/trades/:id", s.handleGetTrade, user)
	v1.DELETE("/trades/:id", s.handleDeleteTrade, user)
	v1.POST("/screenshots", s.handleUploadScreenshot, user)

	v1.GET("/billing", s.handleBilling, user)
	v1.POST("/billing/checkout", s.handleCheckout, user)
	v1.POST("/billing/portal", s.handleBillingPortal, user)

	v1.GET("/overview", s.handleOverview, user, pro)
	v1.GET("/calendar", s.handleCalendar, user, pro)
	v1.GET("/calendar/month", s.handleCalendarMonth, user, pro)
}

// requestContext copies the request id into the request context so every
// log line carries it.
func requestContext(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			ctx = logging.WithLogger(ctx, logger)
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

func requestLog(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
			)

			return err
		}
	}
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully.
// Returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "starting http server", zap.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
