package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/doublexl-digital/cloudflare-crawler/internal/metrics"
)

func newInstrumentedRouter(t *testing.T) (chi.Router, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/sites/{site}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return r, reg
}

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	t.Parallel()

	r, reg := newInstrumentedRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sites/a.test", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	expected := `
# HELP crawler_http_requests_total Ops HTTP requests partitioned by method, route, and code.
# TYPE crawler_http_requests_total counter
crawler_http_requests_total{code="200",method="GET",route="/sites/{site}"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "crawler_http_requests_total"))
}

func TestMetricsMiddleware_RecordsStatusCode(t *testing.T) {
	t.Parallel()

	r, reg := newInstrumentedRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	expected := `
# HELP crawler_http_requests_total Ops HTTP requests partitioned by method, route, and code.
# TYPE crawler_http_requests_total counter
crawler_http_requests_total{code="500",method="GET",route="/boom"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "crawler_http_requests_total"))
}
