// Package collyfetcher implements the gated page fetcher over gocolly.
//
// Each fetch is one GET with redirects followed. The Content-Type and
// Content-Length gates run at the header stage and abort before the body
// is downloaded; accepted responses are charset-decoded, fingerprinted,
// and handed to the extractor.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/doublexl-digital/cloudflare-crawler/internal/crawler"
	"github.com/doublexl-digital/cloudflare-crawler/internal/extract"
)

// Headers presented on every fetch, after the configured User-Agent.
const (
	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguageHeader = "en-US,en;q=0.5"
)

// Config controls collector behavior.
type Config struct {
	UserAgent           string
	Timeout             time.Duration
	MaxContentLength    int64
	AllowedContentTypes []string
}

// Fetcher implements crawler.Fetcher using a cloned-per-fetch Colly
// collector over a shared transport.
type Fetcher struct {
	cfg    Config
	hasher crawler.Hasher
	base   *colly.Collector
}

// New builds a Fetcher. The transport is shared across all fetches of the
// run; pass nil to use the default.
func New(cfg Config, transport http.RoundTripper, hasher crawler.Hasher) *Fetcher {
	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.MaxBodySize(int(cfg.MaxContentLength)),
		colly.DetectCharset(),
		colly.ParseHTTPErrorResponse(),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	if transport != nil {
		c.WithTransport(transport)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c.SetRequestTimeout(timeout)

	return &Fetcher{
		cfg:    cfg,
		hasher: hasher,
		base:   c,
	}
}

// Fetch performs one gated GET. The returned error is non-nil only for
// transport-class failures; the outcome is complete in every case and
// carries the duration up to its finalization.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.Outcome, error) {
	outcome := crawler.Outcome{URL: rawURL}
	base, _ := url.Parse(rawURL)

	start := time.Now()
	collector := f.buildCollector(base, &outcome)
	visitErr := f.visit(ctx, collector, rawURL)
	outcome.FetchTimeMs = time.Since(start).Milliseconds()

	switch {
	case visitErr == nil:
		return outcome, nil
	case errors.Is(visitErr, colly.ErrAbortedAfterHeaders):
		// Policy skip, already recorded by the header hook.
		return outcome, nil
	default:
		outcome.Success = false
		outcome.ErrorMessage = transportErrorMessage(visitErr)
		return outcome, visitErr
	}
}

func (f *Fetcher) buildCollector(base *url.URL, outcome *crawler.Outcome) *colly.Collector {
	collector := f.base.Clone()

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptHeader)
		r.Headers.Set("Accept-Language", acceptLanguageHeader)
	})

	collector.OnResponseHeaders(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if !f.contentTypeAllowed(contentType) {
			outcome.Status = r.StatusCode
			outcome.ContentType = contentType
			outcome.ErrorMessage = fmt.Sprintf("Skipped: unsupported content type %s", contentType)
			r.Request.Abort()
			return
		}
		length := headerContentLength(r.Headers.Get("Content-Length"))
		if length > f.cfg.MaxContentLength {
			outcome.Status = r.StatusCode
			outcome.ContentType = contentType
			outcome.ContentLength = &length
			outcome.ErrorMessage = fmt.Sprintf("Skipped: content too large (%d bytes)", length)
			r.Request.Abort()
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		body := string(r.Body)
		hash, err := f.hasher.Hash(r.Body)
		if err != nil {
			outcome.Status = r.StatusCode
			outcome.ContentType = r.Headers.Get("Content-Type")
			outcome.ErrorMessage = fmt.Sprintf("hash content: %v", err)
			return
		}

		resolveBase := base
		if resolveBase == nil {
			resolveBase = r.Request.URL
		}
		page := extract.Page(resolveBase, body)

		size := int64(len(body))
		outcome.Success = true
		outcome.Status = r.StatusCode
		outcome.ContentType = r.Headers.Get("Content-Type")
		outcome.ContentLength = &size
		outcome.ContentHash = hash
		outcome.Title = page.Title
		outcome.HTML = body
		outcome.Links = page.Links
	})

	return collector
}

func (f *Fetcher) visit(ctx context.Context, collector *colly.Collector, rawURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		return err
	}
}

func (f *Fetcher) contentTypeAllowed(header string) bool {
	for _, allowed := range f.cfg.AllowedContentTypes {
		if strings.Contains(header, allowed) {
			return true
		}
	}
	return false
}

// headerContentLength treats a missing or unparseable Content-Length as
// zero, letting the fetch proceed to the body read.
func headerContentLength(header string) int64 {
	if header == "" {
		return 0
	}
	length, err := strconv.ParseInt(header, 10, 64)
	if err != nil || length < 0 {
		return 0
	}
	return length
}

func transportErrorMessage(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Request timed out"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out"
	}
	return err.Error()
}
