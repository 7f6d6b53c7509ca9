package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/venomqa/venomqa/internal/metrics"
)

func TestEndpointHandler_ServesPrometheusTextFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "probe_total", Help: "test counter"})
	counter.Inc()
	require.NoError(t, reg.Register(counter))

	h := metrics.NewEndpointHandler(reg, 60, 10)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "probe_total 1"))
}

func TestEndpointHandler_RejectsNonGet(t *testing.T) {
	h := metrics.NewEndpointHandler(prometheus.NewRegistry(), 60, 10)

	req := httptest.NewRequest(http.MethodPost, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEndpointHandler_RateLimitsRepeatedCallers(t *testing.T) {
	h := metrics.NewEndpointHandler(prometheus.NewRegistry(), 1, 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	first := httptest.NewRecorder()
	h.ServeHTTP(first, req)
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, req)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}
