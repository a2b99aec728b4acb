package crawler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountersRecordSuccess(t *testing.T) {
	t.Parallel()

	var c Counters
	c.Record(Outcome{
		Success: true,
		HTML:    "<html>hello</html>",
		Links:   []string{"http://a.test/x", "http://a.test/y"},
	})

	snap := c.Snapshot()
	require.Equal(t, int64(1), snap.PagesCrawled)
	require.Equal(t, int64(0), snap.PagesFailed)
	require.Equal(t, int64(2), snap.LinksDiscovered)
	require.Equal(t, int64(len("<html>hello</html>")), snap.BytesDownloaded)
}

func TestCountersRecordFailure(t *testing.T) {
	t.Parallel()

	var c Counters
	c.Record(Outcome{Success: false, ErrorMessage: "Request timed out"})
	c.Record(Outcome{Success: false, Status: 200, ErrorMessage: "Skipped: unsupported content type application/pdf"})

	snap := c.Snapshot()
	require.Equal(t, int64(0), snap.PagesCrawled)
	require.Equal(t, int64(2), snap.PagesFailed)
	require.Equal(t, int64(0), snap.LinksDiscovered)
	require.Equal(t, int64(0), snap.BytesDownloaded)
}

func TestCountersConcurrentRecord(t *testing.T) {
	t.Parallel()

	var c Counters
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				c.Record(Outcome{Success: true, HTML: "x", Links: []string{"http://a.test/"}})
			} else {
				c.Record(Outcome{Success: false})
			}
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	require.Equal(t, int64(50), snap.PagesCrawled)
	require.Equal(t, int64(50), snap.PagesFailed)
	require.Equal(t, int64(50), snap.LinksDiscovered)
	require.Equal(t, int64(50), snap.BytesDownloaded)
}
