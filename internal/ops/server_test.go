package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/doublexl-digital/cloudflare-crawler/internal/crawler"
	"github.com/doublexl-digital/cloudflare-crawler/internal/metrics"
	"github.com/doublexl-digital/cloudflare-crawler/internal/store"
)

func newTestServer(t *testing.T) (*Server, *crawler.Counters, *metrics.Metrics, *store.MemoryRepository) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	counters := &crawler.Counters{}
	repo := store.NewMemoryRepository()
	return NewServer(reg, m, counters, repo, "run-7", zap.NewNop()), counters, m, repo
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	s, _, _, _ := newTestServer(t)
	rec := get(t, s, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	s, _, _, _ := newTestServer(t)
	rec := get(t, s, "/readyz")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestServer_Statusz(t *testing.T) {
	t.Parallel()

	s, counters, _, _ := newTestServer(t)
	counters.Record(crawler.Outcome{
		Success: true,
		HTML:    "<html>ok</html>",
		Links:   []string{"https://a.test/1", "https://a.test/2"},
	})
	counters.Record(crawler.Outcome{ErrorMessage: "Request timed out"})

	rec := get(t, s, "/statusz")
	require.Equal(t, http.StatusOK, rec.Code)

	var res statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "run-7", res.RunID)
	require.Equal(t, int64(1), res.Stats.PagesCrawled)
	require.Equal(t, int64(1), res.Stats.PagesFailed)
	require.Equal(t, int64(2), res.Stats.LinksDiscovered)
}

func TestServer_RunzBeforeStart(t *testing.T) {
	t.Parallel()

	s, _, _, _ := newTestServer(t)
	rec := get(t, s, "/runz")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"run not started"}`, rec.Body.String())
}

func TestServer_Runz(t *testing.T) {
	t.Parallel()

	s, _, _, repo := newTestServer(t)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	require.NoError(t, repo.UpsertRunStart(ctx, "run-7", started))
	require.NoError(t, repo.AddRunTotals(ctx, "run-7", 2, 5))
	require.NoError(t, repo.CompleteRun(ctx, "run-7", finished, store.RunSuccess, nil))

	rec := get(t, s, "/runz")
	require.Equal(t, http.StatusOK, rec.Code)

	var res runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "run-7", res.RunID)
	require.Equal(t, "success", res.Status)
	require.True(t, started.Equal(res.StartedAt))
	require.NotNil(t, res.FinishedAt)
	require.True(t, finished.Equal(*res.FinishedAt))
	require.Nil(t, res.Note)
	require.Equal(t, int64(2), res.Batches)
	require.Equal(t, int64(5), res.Reported)
}

func TestServer_ListSitesEmpty(t *testing.T) {
	t.Parallel()

	s, _, _, _ := newTestServer(t)
	rec := get(t, s, "/sites")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"run_id":"run-7","sites":[]}`, rec.Body.String())
}

func TestServer_ListSites(t *testing.T) {
	t.Parallel()

	s, _, _, repo := newTestServer(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertSiteStats(ctx, "run-7", "b.example.com", 1, 1, 2048, "2xx", at))
	require.NoError(t, repo.UpsertSiteStats(ctx, "run-7", "a.example.com", 1, 0, 0, "5xx", at))

	rec := get(t, s, "/sites")
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		RunID string              `json:"run_id"`
		Sites []siteStatsResponse `json:"sites"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "run-7", res.RunID)
	require.Len(t, res.Sites, 2)
	require.Equal(t, "a.example.com", res.Sites[0].Site)
	require.Equal(t, int64(1), res.Sites[0].Fetch5xx)
	require.Equal(t, "b.example.com", res.Sites[1].Site)
	require.Equal(t, int64(1), res.Sites[1].Pages)
	require.Equal(t, int64(2048), res.Sites[1].BytesTotal)
	require.Equal(t, int64(1), res.Sites[1].Fetch2xx)
}

func TestServer_ListSitesPaging(t *testing.T) {
	t.Parallel()

	s, _, _, repo := newTestServer(t)
	ctx := context.Background()
	at := time.Now().UTC()
	for _, site := range []string{"a.test", "b.test", "c.test"} {
		require.NoError(t, repo.UpsertSiteStats(ctx, "run-7", site, 1, 1, 100, "2xx", at))
	}

	rec := get(t, s, "/sites?limit=2&offset=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Sites []siteStatsResponse `json:"sites"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Sites, 1)
	require.Equal(t, "c.test", res.Sites[0].Site)
}

func TestServer_ListSitesInvalidParams(t *testing.T) {
	t.Parallel()

	s, _, _, _ := newTestServer(t)

	rec := get(t, s, "/sites?limit=0")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"invalid limit"}`, rec.Body.String())

	rec = get(t, s, "/sites?offset=-1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"invalid offset"}`, rec.Body.String())
}

func TestServer_MetricsExposesCollectors(t *testing.T) {
	t.Parallel()

	s, _, m, _ := newTestServer(t)
	m.ObserveBatch(10)
	m.ObserveOutcome(crawler.Outcome{Success: true, HTML: "<html></html>", FetchTimeMs: 5})

	rec := get(t, s, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "crawler_batches_total")
	require.Contains(t, rec.Body.String(), "crawler_pages_total")
}

func TestServer_MetricsMiddlewareRecordsRequests(t *testing.T) {
	t.Parallel()

	s, _, _, _ := newTestServer(t)
	get(t, s, "/healthz")

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `crawler_http_requests_total{code="200",method="GET",route="/healthz"} 1`)
}

func TestServer_UnknownRoute(t *testing.T) {
	t.Parallel()

	s, _, _, _ := newTestServer(t)
	rec := get(t, s, "/nope")

	require.Equal(t, http.StatusNotFound, rec.Code)
}
