// Package store declares interfaces for persisting run progress.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("progress record not found")

// RunStatus tracks the lifecycle of one crawl run.
type RunStatus string

// Run statuses recorded for a crawl run.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// RunRecord models the stored state of one crawl run.
type RunRecord struct {
	// RunID is the crawl identifier shared with the coordinator.
	RunID string
	// StartedAt captures when the run was first marked running.
	StartedAt time.Time
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt *time.Time
	// Status is running/success/error.
	Status RunStatus
	// Note optionally stores the final failure reason.
	Note *string
	// Batches counts the non-empty work batches the run processed.
	Batches int64
	// Reported counts the results the coordinator accepted.
	Reported int64
}

// SiteStats captures per-site aggregation for a run.
type SiteStats struct {
	// RunID is the owning crawl run.
	RunID string
	// Site is the normalized host label (e.g., example.com).
	Site string
	// LastUpdate captures the timestamp of the most recent aggregate.
	LastUpdate time.Time
	// Pages counts fetches that produced a parseable page.
	Pages int64
	// BytesTotal accumulates decoded response bytes.
	BytesTotal int64
	// Fetch2xx-5xx hold per-status counts for diagnostics.
	Fetch2xx int64
	Fetch3xx int64
	Fetch4xx int64
	Fetch5xx int64
}

// ProgressRepository persists incremental run progress.
type ProgressRepository interface {
	// UpsertRunStart inserts (or idempotently updates) the started_at timestamp.
	UpsertRunStart(ctx context.Context, runID string, startedAt time.Time) error
	// CompleteRun marks the run finished with the provided status and note.
	CompleteRun(ctx context.Context, runID string, finishedAt time.Time, status RunStatus, note *string) error
	// AddRunTotals applies batch/report deltas to the run record.
	AddRunTotals(ctx context.Context, runID string, deltaBatches, deltaReported int64) error
	// UpsertSiteStats applies fetch/page/byte deltas per (run, site,
	// statusClass).
	UpsertSiteStats(
		ctx context.Context,
		runID string,
		site string,
		deltaFetches int64,
		deltaPages int64,
		deltaBytes int64,
		statusClass string,
		at time.Time,
	) error

	// GetRun loads a single run record or returns ErrNotFound.
	GetRun(ctx context.Context, runID string) (RunRecord, error)
	// ListSites returns aggregated site stats for one run ordered by site.
	ListSites(ctx context.Context, runID string, limit, offset int) ([]SiteStats, error)
}
