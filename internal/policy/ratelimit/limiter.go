// Package ratelimit spaces requests per host. A batch can carry many URLs
// for the same site, and the shared token bucket keeps the crawler polite
// toward that site without slowing down unrelated hosts.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out per-host tokens at a fixed minimum interval.
type Limiter struct {
	mu    sync.Mutex
	hosts map[string]*rate.Limiter
	limit rate.Limit
}

// New builds a Limiter enforcing minInterval between requests to the same
// host. A non-positive interval disables limiting.
func New(minInterval time.Duration) *Limiter {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Limiter{
		hosts: make(map[string]*rate.Limiter),
		limit: limit,
	}
}

// Wait blocks until the host behind rawURL may be contacted again,
// respecting the context. URLs that cannot be parsed share a single
// "unknown" bucket.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if err := l.limiterFor(rawURL).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (l *Limiter) limiterFor(rawURL string) *rate.Limiter {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists := l.hosts[host]
	if !exists {
		limiter = rate.NewLimiter(l.limit, 1)
		l.hosts[host] = limiter
	}
	return limiter
}
