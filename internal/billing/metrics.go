package billing

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for webhook processing.
type Metrics struct {
	WebhookEvents *prometheus.CounterVec
}

// NewMetrics registers billing metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			WebhookEvents: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tradetally_billing_webhook_events_total",
					Help: "Total number of payment webhook events processed",
				},
				[]string{"type", "outcome"}, // "ok", "ignored", "error"
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) webhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}
