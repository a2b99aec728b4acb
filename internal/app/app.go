// Package app initializes and holds the long-lived services for one
// crawler run, acting as the dependency injection container for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/doublexl-digital/cloudflare-crawler/internal/clock/system"
	"github.com/doublexl-digital/cloudflare-crawler/internal/config"
	"github.com/doublexl-digital/cloudflare-crawler/internal/coordinator"
	"github.com/doublexl-digital/cloudflare-crawler/internal/crawler"
	collyfetcher "github.com/doublexl-digital/cloudflare-crawler/internal/fetcher/colly"
	"github.com/doublexl-digital/cloudflare-crawler/internal/hash/sha256"
	"github.com/doublexl-digital/cloudflare-crawler/internal/id/uuid"
	"github.com/doublexl-digital/cloudflare-crawler/internal/metrics"
	"github.com/doublexl-digital/cloudflare-crawler/internal/ops"
	"github.com/doublexl-digital/cloudflare-crawler/internal/pipeline"
	"github.com/doublexl-digital/cloudflare-crawler/internal/policy/ratelimit"
	"github.com/doublexl-digital/cloudflare-crawler/internal/progress"
	"github.com/doublexl-digital/cloudflare-crawler/internal/progress/sinks"
	"github.com/doublexl-digital/cloudflare-crawler/internal/runloop"
	"github.com/doublexl-digital/cloudflare-crawler/internal/session"
	"github.com/doublexl-digital/cloudflare-crawler/internal/store"
)

const (
	opsShutdownTimeout = 10 * time.Second
	hubCloseTimeout    = 5 * time.Second
)

// App holds the shared, long-lived services for one crawler run. It is
// initialized once at startup and drives the run loop to completion.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	session *session.Session
	hub     *progress.Hub
	runner  *runloop.Runner
	opsSrv  *http.Server
}

// New wires the full worker from configuration: shared transport, metrics
// registry, progress hub with its sinks, coordinator client, fetch
// pipeline, and run loop. It fails fast when any service cannot be built.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	workerID, err := uuid.NewGenerator().NewID()
	if err != nil {
		return nil, fmt.Errorf("generate worker id: %w", err)
	}
	logger = logger.With(
		zap.String("worker_id", workerID),
		zap.String("run_id", cfg.RunID),
	)

	sess := session.New()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	repo := store.NewMemoryRepository()
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("init progress collectors: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		promSink,
		sinks.NewStoreSink(repo, logger),
	)
	events := progress.WithRun(cfg.RunID, hub)

	coord := coordinator.New(coordinator.Config{
		APIURL:    cfg.APIURL,
		APIToken:  cfg.APIToken,
		RunID:     cfg.RunID,
		BatchSize: cfg.BatchSize,
	}, sess.Client(cfg.RequestTimeout()), system.New(), logger)

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:           cfg.UserAgent,
		Timeout:             cfg.RequestTimeout(),
		MaxContentLength:    cfg.MaxContentLength,
		AllowedContentTypes: cfg.AllowedContentTypes,
	}, sess.RoundTripper(), sha256.New())

	counters := &crawler.Counters{}
	pipe := pipeline.New(
		fetcher,
		ratelimit.New(cfg.DownloadDelay()),
		crawler.NewExponentialRetryPolicy(cfg.RetryCount, cfg.RetryDelay()),
		counters,
		m,
		events,
		logger,
		cfg.ConcurrentRequests,
	)
	runner := runloop.New(coord, pipe, counters, m, events, logger, runloop.Config{
		ReportDelay:    cfg.DownloadDelay(),
		RandomizeDelay: cfg.RandomizeDelay,
	})

	a := &App{
		cfg:     cfg,
		logger:  logger,
		session: sess,
		hub:     hub,
		runner:  runner,
	}
	if cfg.MetricsAddr != "" {
		srv := ops.NewServer(reg, m, counters, repo, cfg.RunID, logger)
		a.opsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return a, nil
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run executes the crawl to completion, serving the ops endpoints while
// the run is active.
func (a *App) Run(ctx context.Context) error {
	if a.opsSrv != nil {
		go func() {
			a.logger.Info("starting ops server", zap.String("addr", a.opsSrv.Addr))
			if err := a.opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("ops server failed", zap.Error(err))
			}
		}()
	}

	_, runErr := a.runner.Run(ctx)

	if a.opsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opsShutdownTimeout)
		defer cancel()
		if err := a.opsSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("ops server shutdown", zap.Error(err))
		}
	}
	return runErr
}

// Close drains the progress hub, releases the shared transport, and
// flushes buffered log entries. It is called by a Cobra hook after the
// command finishes.
func (a *App) Close() {
	a.logger.Info("shutting down application services")

	ctx, cancel := context.WithTimeout(context.Background(), hubCloseTimeout)
	defer cancel()
	if err := a.hub.Close(ctx); err != nil {
		a.logger.Warn("progress hub close", zap.Error(err))
	}

	a.session.Close()

	// Best effort; syncing stderr fails on some platforms and logging
	// itself may be what is failing.
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync on shutdown", zap.Error(err))
	}
}
