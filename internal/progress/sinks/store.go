package sinks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/doublexl-digital/cloudflare-crawler/internal/progress"
	"github.com/doublexl-digital/cloudflare-crawler/internal/store"
)

// StoreSink persists progress deltas via a store.ProgressRepository. It
// collapses site and run counters per batch to reduce write amplification.
type StoreSink struct {
	repo   store.ProgressRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.ProgressRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume collapses deltas per run and site before forwarding them to the
// repository. It respects ctx deadlines and returns repository errors
// verbatim.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	sites := make(map[siteKey]*siteDelta)
	runs := make(map[string]*runDelta)

	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
			if err := s.applyLifecycle(ctx, evt); err != nil {
				return err
			}
		case progress.StageBatchReceived:
			runsDelta(runs, evt.RunID).batches++
		case progress.StageReportDone:
			runsDelta(runs, evt.RunID).reported += evt.Count
		case progress.StageFetchDone:
			recordSiteDelta(sites, evt)
		}
	}

	for runID, delta := range runs {
		if delta.batches == 0 && delta.reported == 0 {
			continue
		}
		if err := s.repo.AddRunTotals(ctx, runID, delta.batches, delta.reported); err != nil {
			return fmt.Errorf("add run totals: %w", err)
		}
	}
	for key, delta := range sites {
		if err := s.repo.UpsertSiteStats(
			ctx,
			key.runID,
			key.site,
			delta.fetches,
			delta.pages,
			delta.bytes,
			key.statusClass,
			delta.at,
		); err != nil {
			return fmt.Errorf("upsert site stats: %w", err)
		}
	}
	return nil
}

func (s *StoreSink) applyLifecycle(ctx context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageRunStart:
		if err := s.repo.UpsertRunStart(ctx, evt.RunID, evt.TS); err != nil {
			return fmt.Errorf("upsert run start: %w", err)
		}
	case progress.StageRunDone:
		if err := s.repo.CompleteRun(ctx, evt.RunID, evt.TS, store.RunSuccess, nil); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	case progress.StageRunError:
		var note *string
		if evt.Note != "" {
			note = &evt.Note
		}
		if err := s.repo.CompleteRun(ctx, evt.RunID, evt.TS, store.RunError, note); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	}
	return nil
}

func recordSiteDelta(sites map[siteKey]*siteDelta, evt progress.Event) {
	if evt.Site == "" {
		return
	}
	key := siteKey{
		runID:       evt.RunID,
		site:        evt.Site,
		statusClass: string(evt.StatusClass),
	}
	delta := sites[key]
	if delta == nil {
		delta = &siteDelta{}
		sites[key] = delta
	}
	delta.fetches++
	delta.pages += evt.Pages
	delta.bytes += evt.Bytes
	if evt.TS.After(delta.at) {
		delta.at = evt.TS
	}
}

func runsDelta(runs map[string]*runDelta, runID string) *runDelta {
	delta := runs[runID]
	if delta == nil {
		delta = &runDelta{}
		runs[runID] = delta
	}
	return delta
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type siteKey struct {
	runID       string
	site        string
	statusClass string
}

type siteDelta struct {
	fetches int64
	pages   int64
	bytes   int64
	at      time.Time
}

type runDelta struct {
	batches  int64
	reported int64
}
