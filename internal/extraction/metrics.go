package extraction

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for screenshot extraction.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	RetriesTotal  *prometheus.CounterVec
}

// NewMetrics registers extraction metrics once per process.
//
// Metrics:
//   - tradetally_extraction_requests_total{provider,outcome}
//   - tradetally_extraction_duration_seconds{provider}
//   - tradetally_extraction_retries_total{provider}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tradetally_extraction_requests_total",
					Help: "Total number of screenshot extraction requests",
				},
				[]string{"provider", "outcome"}, // "ok", "error", "invalid"
			),
			Duration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tradetally_extraction_duration_seconds",
					Help:    "Duration of screenshot extraction in seconds",
					Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
				},
				[]string{"provider"},
			),
			RetriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tradetally_extraction_retries_total",
					Help: "Total number of retried model calls",
				},
				[]string{"provider"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) observe(provider, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(provider, outcome).Inc()
	m.Duration.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}

func (m *Metrics) retried(provider string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(provider).Inc()
}
