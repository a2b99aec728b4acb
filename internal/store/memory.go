package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is a process-local ProgressRepository. The worker is
// stateless across restarts, so run progress only needs to outlive the run
// loop long enough for the ops endpoints to read it.
type MemoryRepository struct {
	mu    sync.RWMutex
	runs  map[string]*RunRecord
	sites map[string]map[string]*SiteStats
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		runs:  make(map[string]*RunRecord),
		sites: make(map[string]map[string]*SiteStats),
	}
}

// UpsertRunStart records the run as running, keeping the earliest observed
// start time on repeated calls.
func (r *MemoryRepository) UpsertRunStart(_ context.Context, runID string, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := r.runLocked(runID)
	if run.StartedAt.IsZero() || startedAt.Before(run.StartedAt) {
		run.StartedAt = startedAt
	}
	return nil
}

// CompleteRun marks the run finished. A completion for an unseen run still
// creates the record so late event delivery is not lost.
func (r *MemoryRepository) CompleteRun(
	_ context.Context,
	runID string,
	finishedAt time.Time,
	status RunStatus,
	note *string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := r.runLocked(runID)
	if run.StartedAt.IsZero() {
		run.StartedAt = finishedAt
	}
	run.FinishedAt = &finishedAt
	run.Status = status
	run.Note = note
	return nil
}

// AddRunTotals applies batch and report deltas to the run record.
func (r *MemoryRepository) AddRunTotals(_ context.Context, runID string, deltaBatches, deltaReported int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := r.runLocked(runID)
	run.Batches += deltaBatches
	run.Reported += deltaReported
	return nil
}

// UpsertSiteStats folds fetch/page/byte deltas into the per-site aggregate.
func (r *MemoryRepository) UpsertSiteStats(
	_ context.Context,
	runID string,
	site string,
	deltaFetches int64,
	deltaPages int64,
	deltaBytes int64,
	statusClass string,
	at time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	perRun := r.sites[runID]
	if perRun == nil {
		perRun = make(map[string]*SiteStats)
		r.sites[runID] = perRun
	}
	stats := perRun[site]
	if stats == nil {
		stats = &SiteStats{RunID: runID, Site: site}
		perRun[site] = stats
	}

	stats.Pages += deltaPages
	stats.BytesTotal += deltaBytes
	if at.After(stats.LastUpdate) {
		stats.LastUpdate = at
	}
	switch statusClass {
	case "2xx":
		stats.Fetch2xx += deltaFetches
	case "3xx":
		stats.Fetch3xx += deltaFetches
	case "4xx":
		stats.Fetch4xx += deltaFetches
	case "5xx":
		stats.Fetch5xx += deltaFetches
	}
	return nil
}

// GetRun returns a copy of the run record or ErrNotFound.
func (r *MemoryRepository) GetRun(_ context.Context, runID string) (RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[runID]
	if !ok {
		return RunRecord{}, ErrNotFound
	}
	return *run, nil
}

// ListSites returns site aggregates sorted by site label, windowed by
// limit/offset. A non-positive limit means no cap.
func (r *MemoryRepository) ListSites(_ context.Context, runID string, limit, offset int) ([]SiteStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perRun := r.sites[runID]
	names := make([]string, 0, len(perRun))
	for site := range perRun {
		names = append(names, site)
	}
	sort.Strings(names)

	if offset < 0 {
		offset = 0
	}
	if offset >= len(names) {
		return []SiteStats{}, nil
	}
	names = names[offset:]
	if limit > 0 && limit < len(names) {
		names = names[:limit]
	}

	out := make([]SiteStats, 0, len(names))
	for _, site := range names {
		out = append(out, *perRun[site])
	}
	return out, nil
}

// runLocked fetches or creates the run record. Callers must hold mu.
func (r *MemoryRepository) runLocked(runID string) *RunRecord {
	run, ok := r.runs[runID]
	if !ok {
		run = &RunRecord{RunID: runID, Status: RunRunning}
		r.runs[runID] = run
	}
	return run
}
