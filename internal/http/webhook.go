package http

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/tradetally/internal/billing"
)

const maxWebhookBody = 1 << 20

// ipLimiters hands out one limiter per client IP. The table is reset
// hourly so it cannot grow without bound.
type ipLimiters struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
	every       rate.Limit
	burst       int
}

// newIPLimiters allows 1 request per second with a burst of 10 per IP.
func newIPLimiters() *ipLimiters {
	return &ipLimiters{
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
		every:       rate.Limit(1),
		burst:       10,
	}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) > time.Hour {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}

	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.every, l.burst)
		l.limiters[ip] = limiter
	}
	return limiter
}

// ipExtractor reads the client address from X-Forwarded-For, walking hops
// from the nearest proxy and stopping at the first untrusted one. Loopback,
// link-local and private peers are trusted along with the given ranges.
func ipExtractor(trusted []string) (echo.IPExtractor, error) {
	opts := make([]echo.TrustOption, 0, len(trusted))
	for _, raw := range trusted {
		n, err := parseTrustedProxy(raw)
		if err != nil {
			return nil, err
		}
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

// parseTrustedProxy accepts a CIDR or a single address.
func parseTrustedProxy(raw string) (*net.IPNet, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "/") {
		ip := net.ParseIP(raw)
		if ip == nil {
			return nil, fmt.Errorf("invalid trusted proxy %q", raw)
		}
		bits := 128
		if ip.To4() != nil {
			ip, bits = ip.To4(), 32
		}
		return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
	}
	_, n, err := net.ParseCIDR(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
	}
	return n, nil
}

// handleStripeWebhook verifies and applies a Stripe event. Handler
// failures answer 500 so Stripe retries delivery.
func (s *Server) handleStripeWebhook(c echo.Context) error {
	r := c.Request()
	ctx := r.Context()

	ip := c.RealIP()
	if !s.limiters.get(ip).Allow() {
		s.metrics.WebhooksRejected.WithLabelValues("rate_limited").Inc()
		s.logger.Warn(ctx, "rate limit exceeded", zap.String("ip", ip))
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}

	if s.config.WebhookSecret == "" {
		s.metrics.WebhooksRejected.WithLabelValues("not_configured").Inc()
		s.logger.Error(ctx, "stripe webhook received without a configured secret")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "webhooks are not configured")
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Response(), r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.WebhooksRejected.WithLabelValues("too_large").Inc()
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "payload too large")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read payload")
	}

	event, err := billing.ParseEvent(payload, r.Header.Get(billing.SignatureHeader), s.config.WebhookSecret)
	if err != nil {
		reason := "invalid_payload"
		if errors.Is(err, billing.ErrInvalidSignature) {
			reason = "invalid_signature"
		}
		s.metrics.WebhooksRejected.WithLabelValues(reason).Inc()
		s.logger.Warn(ctx, "stripe webhook rejected", zap.String("reason", reason), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Webhook Error: "+err.Error())
	}

	if err := s.billing.HandleEvent(ctx, event); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "webhook handler failed")
	}
	return c.JSON(http.StatusOK, WebhookResponse{Received: true})
}
