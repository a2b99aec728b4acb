package progress

import (
	"context"
	"time"
)

// Sink consumes batches of progress events. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// pipeline and run loop stay agnostic about how events are buffered or
// persisted.
type Emitter interface {
	Emit(evt Event)
}

// WithRun wraps an Emitter so every event carries the run ID, stamping a
// UTC timestamp when the caller left it zero. Emitting components only fill
// the stage-specific fields.
func WithRun(runID string, next Emitter) Emitter {
	return runEmitter{runID: runID, next: next}
}

type runEmitter struct {
	runID string
	next  Emitter
}

func (e runEmitter) Emit(evt Event) {
	if e.next == nil {
		return
	}
	if evt.RunID == "" {
		evt.RunID = e.runID
	}
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	e.next.Emit(evt)
}
