package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fyrsmithlabs/observerd/internal/logging"
	"github.com/fyrsmithlabs/observerd/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	m := NewHTTPMetrics(tel.Meter(InstrumentationName), logging.NewNop())

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/dashboard/:user", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "nope")
	})

	for _, path := range []string{"/health", "/api/v1/dashboard/a", "/api/v1/dashboard/b"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, int64(3), tel.SumValue(t, "observerd.http.requests_total"))

	rm, err := tel.Collect(t.Context())
	require.NoError(t, err)

	routes := map[string]int64{}
	statuses := map[int64]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok || metric.Name != "observerd.http.requests_total" {
				continue
			}
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value("route")
				routes[route.AsString()] += dp.Value
				status, _ := dp.Attributes.Value("status")
				statuses[status.AsInt64()] = true
			}
		}
	}
	assert.Equal(t, int64(1), routes["/health"])
	assert.Equal(t, int64(2), routes["/api/v1/dashboard/:user"])
	assert.True(t, statuses[http.StatusTeapot], "error status should be recorded after rendering")
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unmatched"},
		{"/health", "/health"},
		{"/api/v1/dashboard/:user", "/api/v1/dashboard/:user"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.input), tt.input)
	}
}
