package crawler

import "sync/atomic"

// Counters aggregates run-lifetime crawl statistics. The zero value is
// ready to use and all methods are safe for concurrent use.
type Counters struct {
	pagesCrawled    atomic.Int64
	pagesFailed     atomic.Int64
	linksDiscovered atomic.Int64
	bytesDownloaded atomic.Int64
}

// Record applies one outcome. A success counts the page, its discovered
// links, and its decoded size; everything else, including content-policy
// skips, counts as a failed page.
func (c *Counters) Record(o Outcome) {
	if !o.Success {
		c.pagesFailed.Add(1)
		return
	}
	c.pagesCrawled.Add(1)
	c.linksDiscovered.Add(int64(len(o.Links)))
	c.bytesDownloaded.Add(int64(len(o.HTML)))
}

// Snapshot returns a point-in-time copy of the counter values.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		PagesCrawled:    c.pagesCrawled.Load(),
		PagesFailed:     c.pagesFailed.Load(),
		LinksDiscovered: c.linksDiscovered.Load(),
		BytesDownloaded: c.bytesDownloaded.Load(),
	}
}

// CounterSnapshot is an immutable view of Counters.
type CounterSnapshot struct {
	PagesCrawled    int64 `json:"pages_crawled"`
	PagesFailed     int64 `json:"pages_failed"`
	LinksDiscovered int64 `json:"links_discovered"`
	BytesDownloaded int64 `json:"bytes_downloaded"`
}
