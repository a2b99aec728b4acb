package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves one URL and classifies the attempt. The returned error
// is non-nil only for transport-class failures (timeouts, connection
// errors); in that case the accompanying Outcome is the failed record for
// the attempt. Policy skips and HTTP error statuses return a nil error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Outcome, error)
}

// Coordinator is the two-operation client for the work API. Both
// operations swallow transport and status failures: RequestWork degrades
// to an empty batch, ReportResult to a dropped report.
type Coordinator interface {
	RequestWork(ctx context.Context) []string
	ReportResult(ctx context.Context, outcome Outcome) bool
}

// Pipeline executes a batch of URLs and returns one Outcome per input, in
// input order.
type Pipeline interface {
	Process(ctx context.Context, urls []string) []Outcome
}

// RateLimiter spaces fetch launches against the same host.
type RateLimiter interface {
	Wait(ctx context.Context, url string) error
}

// RetryPolicy decides whether and when a failed fetch is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher computes content fingerprints.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces worker instance IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
