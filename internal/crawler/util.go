package crawler

import (
	"context"
	"time"
)

// Sleep pauses for d unless the context ends first, reporting whether the
// full pause elapsed. A non-positive d only checks the context.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
