package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/doublexl-digital/cloudflare-crawler/internal/progress"
)

// PrometheusSink exports per-site crawl progress via Prometheus. It owns the
// run lifecycle collectors and the site-labeled fetch counters; the flat
// per-run collectors live in the metrics package.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	siteFetches *prometheus.CounterVec
	sitePages   *prometheus.CounterVec
	siteBytes   *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_runs_started_total",
			Help: "Total crawl runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_runs_completed_total",
			Help: "Total crawl runs completed partitioned by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_run_duration_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
		siteFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_site_fetch_total",
			Help: "Fetch completions partitioned by site and status class.",
		}, []string{"site", "status_class"}),
		sitePages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_site_pages_total",
			Help: "Fetches that produced a page, per site.",
		}, []string{"site"}),
		siteBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_site_bytes_total",
			Help: "Decoded bytes downloaded per site.",
		}, []string{"site"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.siteFetches,
		s.sitePages,
		s.siteBytes,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.observeCompletion(evt, "success")
	case progress.StageRunError:
		s.observeCompletion(evt, "error")
	case progress.StageFetchDone:
		s.observeFetch(evt)
	}
}

func (s *PrometheusSink) observeCompletion(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) observeFetch(evt progress.Event) {
	site := evt.Site
	if site == "" {
		site = "unknown"
	}
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.siteFetches.WithLabelValues(site, statusClass).Inc()
	if evt.Pages > 0 {
		s.sitePages.WithLabelValues(site).Add(float64(evt.Pages))
	}
	if evt.Bytes > 0 {
		s.siteBytes.WithLabelValues(site).Add(float64(evt.Bytes))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
