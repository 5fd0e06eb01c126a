package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/tradetally/internal/logging"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	m := newHTTPMetrics(mp.Meter(InstrumentationName), logging.NewNop())

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/trades/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})

	for _, path := range []string{"/health", "/api/v1/trades/abc", "/api/v1/trades/def"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, mm := range sm.Metrics {
			found[mm.Name] = true
			switch mm.Name {
			case "tradetally.http.requests_total":
				sum, ok := mm.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				byEndpoint := map[string]int64{}
				for _, dp := range sum.DataPoints {
					endpoint, _ := dp.Attributes.Value(attribute.Key("endpoint"))
					status, _ := dp.Attributes.Value(attribute.Key("status"))
					byEndpoint[endpoint.AsString()] += dp.Value
					if endpoint.AsString() == "/api/v1/trades/:id" {
						assert.Equal(t, int64(http.StatusNotFound), status.AsInt64())
					}
				}
				assert.Equal(t, int64(1), byEndpoint["/health"])
				assert.Equal(t, int64(2), byEndpoint["/api/v1/trades/:id"])
			case "tradetally.http.request_duration_seconds":
				hist, ok := mm.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				var total uint64
				for _, dp := range hist.DataPoints {
					total += dp.Count
				}
				assert.Equal(t, uint64(3), total)
			}
		}
	}

	assert.True(t, found["tradetally.http.requests_total"], "requests counter not found")
	assert.True(t, found["tradetally.http.request_duration_seconds"], "duration histogram not found")
	assert.True(t, found["tradetally.http.response_size_bytes"], "response size histogram not found")
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/health", "/health"},
		{"/api/v1/trades/:id", "/api/v1/trades/:id"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.input), "normalizePath(%q)", tt.input)
	}
}

func TestNewDomainMetrics_Singleton(t *testing.T) {
	assert.Same(t, NewDomainMetrics(), NewDomainMetrics())
}
