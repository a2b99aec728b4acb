// Package coordinator implements the two-operation client for the work
// API: batch acquisition and per-URL result reporting. Both operations
// swallow failures by design; the caller only ever sees an empty batch or
// a dropped report.
package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/doublexl-digital/cloudflare-crawler/internal/crawler"
)

// Config identifies the run against the coordinator.
type Config struct {
	APIURL    string
	APIToken  string
	RunID     string
	BatchSize int
}

// Client talks JSON over HTTPS to the coordinator.
type Client struct {
	cfg    Config
	http   *http.Client
	clock  crawler.Clock
	logger *zap.Logger
}

// New builds a Client on the shared HTTP client for this run.
func New(cfg Config, httpClient *http.Client, clock crawler.Clock, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		clock:  clock,
		logger: logger,
	}
}

type workRequest struct {
	RunID     string `json:"runId"`
	BatchSize int    `json:"batchSize"`
}

type workResponse struct {
	URLs []string `json:"urls"`
}

type resultReport struct {
	RunID          string   `json:"runId"`
	URL            string   `json:"url"`
	Status         int      `json:"status"`
	ContentHash    *string  `json:"contentHash"`
	ContentSize    *int64   `json:"contentSize"`
	DiscoveredURLs []string `json:"discoveredUrls"`
	Error          *string  `json:"error"`
	FetchedAt      int64    `json:"fetchedAt"`
	Content        string   `json:"content,omitempty"`
}

// RequestWork asks for the next batch. Any transport error, non-200
// status, or undecodable response degrades to an empty batch.
func (c *Client) RequestWork(ctx context.Context) []string {
	payload := workRequest{RunID: c.cfg.RunID, BatchSize: c.cfg.BatchSize}

	var res workResponse
	status, err := c.postJSON(ctx, "/api/request-work", payload, &res)
	if err != nil {
		c.logger.Error("error requesting work", zap.Error(err))
		return nil
	}
	if status != http.StatusOK {
		c.logger.Error("failed to request work", zap.Int("status", status))
		return nil
	}
	return res.URLs
}

// ReportResult posts one outcome and reports whether the coordinator
// accepted it. Rejected or undeliverable reports are dropped; there is no
// buffering and no retry.
func (c *Client) ReportResult(ctx context.Context, outcome crawler.Outcome) bool {
	status, err := c.postJSON(ctx, "/api/report-result", c.buildReport(outcome), nil)
	if err != nil {
		c.logger.Error("error reporting result", zap.Error(err))
		return false
	}
	if status != http.StatusOK {
		c.logger.Warn("failed to report result",
			zap.String("url", outcome.URL),
			zap.Int("status", status),
		)
		return false
	}
	return true
}

// buildReport maps an outcome onto the wire shape: absent hash, size, and
// error serialize as JSON null, and the page body rides along only for
// successes. The timestamp is assigned here, at report time.
func (c *Client) buildReport(o crawler.Outcome) resultReport {
	report := resultReport{
		RunID:          c.cfg.RunID,
		URL:            o.URL,
		Status:         o.Status,
		ContentSize:    o.ContentLength,
		DiscoveredURLs: o.Links,
		FetchedAt:      c.clock.Now().UnixMilli(),
	}
	if report.DiscoveredURLs == nil {
		report.DiscoveredURLs = []string{}
	}
	if o.ContentHash != "" {
		report.ContentHash = &o.ContentHash
	}
	if o.ErrorMessage != "" {
		report.Error = &o.ErrorMessage
	}
	if o.Success && o.HTML != "" {
		report.Content = o.HTML
	}
	return report
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
