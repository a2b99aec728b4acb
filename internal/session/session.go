// Package session owns the pooled HTTP transport that every outbound
// request in a run travels over. Coordinator calls and page fetches share
// the one pool, and closing the session releases it exactly once.
package session

import (
	"net"
	"net/http"
	"time"
)

// Session is the shared transport for one crawler run.
type Session struct {
	transport *http.Transport
}

// New builds a Session with a connection pool tuned for crawling.
func New() *Session {
	return &Session{
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   15 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// RoundTripper exposes the pooled transport for the page fetcher.
func (s *Session) RoundTripper() http.RoundTripper {
	return s.transport
}

// Client returns an HTTP client on the shared pool with the given total
// request timeout.
func (s *Session) Client(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: s.transport,
		Timeout:   timeout,
	}
}

// Close releases idle pooled connections. Safe to call more than once.
func (s *Session) Close() {
	s.transport.CloseIdleConnections()
}
