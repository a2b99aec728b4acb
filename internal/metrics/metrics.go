// Package metrics owns the Prometheus collectors for a crawler run. All
// collectors register against an injected registry so tests and embedders
// never fight over the global one.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/doublexl-digital/cloudflare-crawler/internal/crawler"
)

// Metrics exposes counters for pages, bytes, links, batches, and reports,
// plus latency histograms for fetches and the ops HTTP surface. Safe for
// concurrent use.
type Metrics struct {
	pages           *prometheus.CounterVec
	bytesDownloaded prometheus.Counter
	linksDiscovered prometheus.Counter
	fetchDuration   *prometheus.HistogramVec
	fetchesInFlight prometheus.Gauge
	fetchRetries    prometheus.Counter
	batches         *prometheus.CounterVec
	reports         *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers the collectors against the provided registry.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_pages_total",
			Help: "Pages processed partitioned by result.",
		}, []string{"result"}),
		bytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_bytes_downloaded_total",
			Help: "Decoded bytes of successfully fetched pages.",
		}),
		linksDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_links_discovered_total",
			Help: "Links extracted from successfully fetched pages.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by result.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"result"}),
		fetchesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_fetches_in_flight",
			Help: "Fetches currently running.",
		}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_fetch_retries_total",
			Help: "Fetch attempts beyond the first.",
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_batches_total",
			Help: "Batches received partitioned by kind.",
		}, []string{"kind"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_reports_total",
			Help: "Result reports partitioned by coordinator acceptance.",
		}, []string{"accepted"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_http_requests_total",
			Help: "Ops HTTP requests partitioned by method, route, and code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_http_request_duration_seconds",
			Help:    "Ops HTTP request duration partitioned by method and route.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "route"}),
	}
	for _, collector := range []prometheus.Collector{
		m.pages,
		m.bytesDownloaded,
		m.linksDiscovered,
		m.fetchDuration,
		m.fetchesInFlight,
		m.fetchRetries,
		m.batches,
		m.reports,
		m.httpRequests,
		m.httpDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register crawler collector: %w", err)
		}
	}
	return m, nil
}

// ObserveOutcome records one finished fetch. Bytes and links only count
// toward their totals on success.
func (m *Metrics) ObserveOutcome(o crawler.Outcome) {
	result := "failed"
	if o.Success {
		result = "success"
	}
	m.pages.WithLabelValues(result).Inc()
	m.fetchDuration.WithLabelValues(result).Observe(float64(o.FetchTimeMs) / 1000)
	if o.Success {
		m.bytesDownloaded.Add(float64(len(o.HTML)))
		m.linksDiscovered.Add(float64(len(o.Links)))
	}
}

// FetchStarted marks a fetch as in flight.
func (m *Metrics) FetchStarted() { m.fetchesInFlight.Inc() }

// FetchFinished marks an in-flight fetch as done.
func (m *Metrics) FetchFinished() { m.fetchesInFlight.Dec() }

// RetryAttempted counts one re-fetch of a URL after a transport failure.
func (m *Metrics) RetryAttempted() { m.fetchRetries.Inc() }

// ObserveBatch records one coordinator response by size.
func (m *Metrics) ObserveBatch(size int) {
	kind := "work"
	if size == 0 {
		kind = "empty"
	}
	m.batches.WithLabelValues(kind).Inc()
}

// ObserveReport records whether the coordinator accepted a result.
func (m *Metrics) ObserveReport(accepted bool) {
	label := "false"
	if accepted {
		label = "true"
	}
	m.reports.WithLabelValues(label).Inc()
}

// ObserveHTTPRequest records one ops endpoint request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
