// Package runloop drives a crawler run: request a batch, crawl it, report
// every outcome, and stop once the coordinator has gone quiet.
package runloop

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/doublexl-digital/cloudflare-crawler/internal/crawler"
	"github.com/doublexl-digital/cloudflare-crawler/internal/metrics"
	"github.com/doublexl-digital/cloudflare-crawler/internal/progress"
)

// maxEmptyBatches is how many consecutive empty batches signal an
// exhausted frontier.
const maxEmptyBatches = 3

// defaultIdleDelay spaces successive attempts while the coordinator has
// no work.
const defaultIdleDelay = 5 * time.Second

// Config carries the pacing knobs.
type Config struct {
	// IdleDelay is the pause after an empty batch. Zero means the
	// default.
	IdleDelay time.Duration
	// ReportDelay is the pause after each result report.
	ReportDelay time.Duration
	// RandomizeDelay jitters ReportDelay to 0.5x-1.5x.
	RandomizeDelay bool
}

// Runner owns the batch lifecycle for one run.
type Runner struct {
	coordinator crawler.Coordinator
	pipeline    crawler.Pipeline
	counters    *crawler.Counters
	metrics     *metrics.Metrics
	events      progress.Emitter
	logger      *zap.Logger
	cfg         Config
}

// New builds a Runner around the coordinator and pipeline. events may be
// nil when no progress stream is wired.
func New(
	coordinator crawler.Coordinator,
	pipeline crawler.Pipeline,
	counters *crawler.Counters,
	m *metrics.Metrics,
	events progress.Emitter,
	logger *zap.Logger,
	cfg Config,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = defaultIdleDelay
	}
	return &Runner{
		coordinator: coordinator,
		pipeline:    pipeline,
		counters:    counters,
		metrics:     m,
		events:      events,
		logger:      logger,
		cfg:         cfg,
	}
}

// Run processes batches until maxEmptyBatches consecutive requests come
// back empty or the context ends. It returns the final counter values,
// plus an error when the run was cut short by cancellation rather than
// an exhausted frontier.
func (r *Runner) Run(ctx context.Context) (crawler.CounterSnapshot, error) {
	start := time.Now()
	r.emit(progress.Event{Stage: progress.StageRunStart})

	empty := 0
	for empty < maxEmptyBatches && ctx.Err() == nil {
		urls := r.coordinator.RequestWork(ctx)
		if ctx.Err() != nil {
			break
		}
		r.metrics.ObserveBatch(len(urls))

		if len(urls) == 0 {
			empty++
			r.logger.Info("no work available",
				zap.Int("attempt", empty),
				zap.Int("max_attempts", maxEmptyBatches),
			)
			if empty >= maxEmptyBatches {
				break
			}
			if !crawler.Sleep(ctx, r.cfg.IdleDelay) {
				break
			}
			continue
		}

		empty = 0
		r.logger.Info("received urls to crawl", zap.Int("count", len(urls)))
		r.emit(progress.Event{Stage: progress.StageBatchReceived, Count: int64(len(urls))})

		outcomes := r.pipeline.Process(ctx, urls)
		r.report(ctx, outcomes)

		snap := r.counters.Snapshot()
		r.logger.Info("batch stats",
			zap.Int64("crawled", snap.PagesCrawled),
			zap.Int64("failed", snap.PagesFailed),
			zap.Int64("links", snap.LinksDiscovered),
		)
	}

	final := r.counters.Snapshot()
	if err := ctx.Err(); err != nil {
		r.logger.Warn("crawler interrupted", zap.Error(err))
		r.emit(progress.Event{
			Stage: progress.StageRunError,
			Dur:   time.Since(start),
			Note:  err.Error(),
		})
		return final, fmt.Errorf("run interrupted: %w", err)
	}

	r.logger.Info("crawler finished, no more work available")
	r.logger.Info("final stats",
		zap.Int64("pages_crawled", final.PagesCrawled),
		zap.Int64("pages_failed", final.PagesFailed),
		zap.Int64("links_discovered", final.LinksDiscovered),
		zap.Int64("bytes_downloaded", final.BytesDownloaded),
	)
	r.emit(progress.Event{Stage: progress.StageRunDone, Dur: time.Since(start)})
	return final, nil
}

// report delivers outcomes sequentially with the configured pacing. Each
// outcome is offered to the coordinator exactly once; on shutdown the
// remainder is dropped rather than re-queued.
func (r *Runner) report(ctx context.Context, outcomes []crawler.Outcome) {
	for i, outcome := range outcomes {
		if ctx.Err() != nil {
			r.logger.Warn("dropping unreported results", zap.Int("count", len(outcomes)-i))
			return
		}
		accepted := r.coordinator.ReportResult(ctx, outcome)
		r.metrics.ObserveReport(accepted)
		evt := progress.Event{Stage: progress.StageReportDone, URL: outcome.URL}
		if accepted {
			evt.Count = 1
		}
		r.emit(evt)
		crawler.Sleep(ctx, r.reportDelay())
	}
}

// reportDelay returns the pause between reports, jittered to 0.5x-1.5x
// when randomization is on.
func (r *Runner) reportDelay() time.Duration {
	delay := r.cfg.ReportDelay
	if delay <= 0 {
		return 0
	}
	if r.cfg.RandomizeDelay {
		delay = time.Duration((0.5 + rand.Float64()) * float64(delay))
	}
	return delay
}

func (r *Runner) emit(evt progress.Event) {
	if r.events == nil {
		return
	}
	r.events.Emit(evt)
}
