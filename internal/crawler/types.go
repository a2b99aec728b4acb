package crawler

// Outcome is the result of attempting one URL from a work batch.
//
// Invariant: ContentHash, Title, HTML, and a non-empty Links slice are
// populated only when Success is true. Status is zero when the request
// never completed (timeout or connection failure before a response).
type Outcome struct {
	URL           string
	Success       bool
	Status        int
	ContentType   string
	ContentLength *int64
	ContentHash   string
	Title         string
	HTML          string
	Links         []string
	ErrorMessage  string
	FetchTimeMs   int64
}
