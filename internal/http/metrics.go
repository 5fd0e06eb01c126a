package http

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tradetally/internal/logging"
)

// InstrumentationName scopes the API's meters and tracers.
const InstrumentationName = "github.com/fyrsmithlabs/tradetally/internal/http"

// HTTPMetrics holds all HTTP-related metrics.
type HTTPMetrics struct {
	meter          metric.Meter
	logger         *logging.Logger
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	responseSize   metric.Int64Histogram
	activeRequests metric.Int64UpDownCounter
}

// NewHTTPMetrics creates HTTP metrics on meter, or on the global meter
// provider when meter is nil.
func NewHTTPMetrics(meter metric.Meter, logger *logging.Logger) *HTTPMetrics {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	return newHTTPMetrics(meter, logger)
}

func newHTTPMetrics(meter metric.Meter, logger *logging.Logger) *HTTPMetrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &HTTPMetrics{
		meter:  meter,
		logger: logger,
	}
	m.init()
	return m
}

func (m *HTTPMetrics) init() {
	var err error

	m.requestsTotal, err = m.meter.Int64Counter(
		"tradetally.http.requests_total",
		metric.WithDescription("Total HTTP requests labeled by method, endpoint route and status code."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create requests counter", zap.Error(err))
	}

	m.requestDur, err = m.meter.Float64Histogram(
		"tradetally.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds, labeled by method, endpoint route and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create duration histogram", zap.Error(err))
	}

	m.responseSize, err = m.meter.Int64Histogram(
		"tradetally.http.response_size_bytes",
		metric.WithDescription("HTTP response body size in bytes, labeled by method, endpoint route and status."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 5000000),
	)
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create response size histogram", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"tradetally.http.active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create active requests gauge", zap.Error(err))
	}
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := req.Context()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
			}

			err := next(c)
			if err != nil {
				// Resolve the status the error handler will write.
				c.Error(err)
				err = nil
			}

			attrs := metric.WithAttributes(
				attribute.String("method", req.Method),
				attribute.String("endpoint", normalizePath(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.responseSize != nil {
				m.responseSize.Record(ctx, c.Response().Size, attrs)
			}
			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, -1)
			}
			return err
		}
	}
}

// normalizePath returns the matched route template (for example
// /api/v1/trades/:id), so ids never become label values. Unmatched
// requests report "/".
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

var (
	globalDomainMetrics *DomainMetrics
	domainMetricsOnce   sync.Once
)

// DomainMetrics holds Prometheus counters for journal activity.
type DomainMetrics struct {
	TradesCreated       prometheus.Counter
	ScreenshotsUploaded *prometheus.CounterVec
	WebhooksRejected    *prometheus.CounterVec
}

// NewDomainMetrics registers journal metrics once per process.
//
// Metrics:
//   - tradetally_trades_created_total
//   - tradetally_screenshots_uploaded_total{outcome}
//   - tradetally_webhooks_rejected_total{reason}
func NewDomainMetrics() *DomainMetrics {
	domainMetricsOnce.Do(func() {
		globalDomainMetrics = &DomainMetrics{
			TradesCreated: promauto.NewCounter(prometheus.CounterOpts{
				Name: "tradetally_trades_created_total",
				Help: "Total number of journal trades created",
			}),
			ScreenshotsUploaded: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tradetally_screenshots_uploaded_total",
					Help: "Total number of screenshot uploads",
				},
				[]string{"outcome"}, // "ok", "rejected", "error"
			),
			WebhooksRejected: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tradetally_webhooks_rejected_total",
					Help: "Total number of payment webhooks rejected before handling",
				},
				[]string{"reason"},
			),
		}
	})
	return globalDomainMetrics
}
