// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces the pipeline and run loop use to report crawl progress.
// Events are batched on a background goroutine and fanned out to pluggable
// sinks such as Prometheus collectors or the per-site stats repository.
package progress
