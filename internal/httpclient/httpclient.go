// Package httpclient provides the shared HTTP client used by the source
// resolver and fetch engine. It generalizes the teacher tool's singleton
// client (a bare 1-minute-timeout client suitable for small JSON API calls)
// into a transport tuned for large, long-running archive downloads, along
// the lines of the connection-pool tuning seen in the wider example pack.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// UserAgent is sent on every request this package issues.
const UserAgent = "collector/0.1"

var (
	once   sync.Once
	client *http.Client
)

// Client returns the shared *http.Client. Unlike net/http.DefaultClient it
// stops after 10 redirects, tags every request with UserAgent, and tunes its
// transport for long-lived, high-throughput downloads rather than short API
// calls: a dialer with keep-alives, a generous idle-connection pool, and
// explicit handshake/header timeouts so a wedged server fails fast instead of
// hanging the whole fetch engine.
//
// Per-request deadlines are the caller's responsibility via context; Client
// itself sets no blanket request timeout since archive downloads can
// legitimately run for hours.
func Client() *http.Client {
	once.Do(func() {
		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   15 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		}
		client = &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > 10 {
					return errors.New("stopped after 10 redirects")
				}
				req.Header.Set("user-agent", UserAgent)
				return nil
			},
		}
	})
	return client
}

// Get issues a GET request with the shared client and the standard
// user-agent header.
func Get(ctx context.Context, urlStr string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("user-agent", UserAgent)
	return Client().Do(req)
}

// GetRange issues a GET request with a byte-range header starting at offset,
// used by the fetch engine to resume partial downloads.
func GetRange(ctx context.Context, urlStr string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("user-agent", UserAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	return Client().Do(req)
}
