// Package pipeline fans one batch of URLs out to a bounded set of
// concurrent fetches and hands back outcomes in input order.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/doublexl-digital/cloudflare-crawler/internal/crawler"
	"github.com/doublexl-digital/cloudflare-crawler/internal/metrics"
	"github.com/doublexl-digital/cloudflare-crawler/internal/progress"
)

// Pipeline runs the limiter, fetcher, and retry policy for every URL in a
// batch, recording each outcome into the shared counters, collectors, and
// progress stream exactly once.
type Pipeline struct {
	fetcher     crawler.Fetcher
	limiter     crawler.RateLimiter
	retry       crawler.RetryPolicy
	counters    *crawler.Counters
	metrics     *metrics.Metrics
	events      progress.Emitter
	logger      *zap.Logger
	concurrency int
}

// New builds a Pipeline running at most concurrency fetches at once.
// events may be nil when no progress stream is wired.
func New(
	fetcher crawler.Fetcher,
	limiter crawler.RateLimiter,
	retry crawler.RetryPolicy,
	counters *crawler.Counters,
	m *metrics.Metrics,
	events progress.Emitter,
	logger *zap.Logger,
	concurrency int,
) *Pipeline {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:     fetcher,
		limiter:     limiter,
		retry:       retry,
		counters:    counters,
		metrics:     m,
		events:      events,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Process crawls the batch and returns one outcome per input URL, in
// input order. Cancellation stops new requests; URLs that never got to
// run still come back as failed outcomes so the batch stays fully
// accounted for.
func (p *Pipeline) Process(ctx context.Context, urls []string) []crawler.Outcome {
	outcomes := make([]crawler.Outcome, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, url := range urls {
		g.Go(func() error {
			outcomes[i] = p.crawlOne(gctx, url)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (p *Pipeline) crawlOne(ctx context.Context, url string) crawler.Outcome {
	logger := p.logger.With(zap.String("url", url))

	if err := p.limiter.Wait(ctx, url); err != nil {
		logger.Debug("abandoning url", zap.Error(err))
		return p.finish(crawler.Outcome{URL: url, ErrorMessage: err.Error()})
	}

	logger.Debug("crawling url")
	p.metrics.FetchStarted()
	outcome, err := p.fetcher.Fetch(ctx, url)
	for attempt := 0; err != nil && p.retry.ShouldRetry(err, attempt); attempt++ {
		logger.Debug("retrying fetch", zap.Int("attempt", attempt+1), zap.Error(err))
		if !crawler.Sleep(ctx, p.retry.Backoff(attempt)) {
			break
		}
		p.metrics.RetryAttempted()
		outcome, err = p.fetcher.Fetch(ctx, url)
	}
	p.metrics.FetchFinished()

	if !outcome.Success {
		logger.Debug("fetch did not produce a page",
			zap.Int("status", outcome.Status),
			zap.String("error", outcome.ErrorMessage),
		)
	}
	return p.finish(outcome)
}

// finish is the single recording point for an outcome.
func (p *Pipeline) finish(o crawler.Outcome) crawler.Outcome {
	p.counters.Record(o)
	p.metrics.ObserveOutcome(o)
	p.emitFetchDone(o)
	return o
}

func (p *Pipeline) emitFetchDone(o crawler.Outcome) {
	if p.events == nil {
		return
	}
	evt := progress.Event{
		Stage:       progress.StageFetchDone,
		Site:        progress.SiteLabel(o.URL),
		URL:         o.URL,
		StatusClass: progress.ClassifyStatus(o.Status),
		Dur:         time.Duration(o.FetchTimeMs) * time.Millisecond,
	}
	if o.Success {
		evt.Pages = 1
		evt.Bytes = int64(len(o.HTML))
	}
	p.events.Emit(evt)
}
