// ABOUTME: Streaming HTTP transport for audio and lyric downloads
// ABOUTME: Single connection, safe to close from another goroutine
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// ErrNotOpen is returned by Read before a successful Open.
var ErrNotOpen = errors.New("transport: not open")

// Transport is one streaming connection. Read is driven by the
// ingest goroutine while Close may arrive from the controller during
// teardown; implementations must tolerate that.
type Transport interface {
	Open(ctx context.Context, url string, headers map[string]string) error
	Read(p []byte) (int, error)
	StatusCode() int
	Close() error
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.Code)
}

// HTTP streams over net/http. Partial content responses are accepted
// alongside plain 200s since resumed sessions request ranges.
type HTTP struct {
	client *http.Client

	mu     sync.Mutex
	body   io.ReadCloser
	status int
	closed bool
}

// NewHTTP returns a transport tuned for long-lived audio streams:
// no client timeout on the body, keep-alives on, conservative
// connection pool.
func NewHTTP() *HTTP {
	return &HTTP{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
				MaxIdleConns:          4,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

// Open performs a single GET attempt. Status 200 and 206 are
// success; anything else closes the response and returns a
// StatusError.
func (t *HTTP) Open(ctx context.Context, url string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = resp.StatusCode
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return &StatusError{Code: resp.StatusCode}
	}
	if t.closed {
		// Stop raced the open; do not leak the body.
		resp.Body.Close()
		return ErrNotOpen
	}
	t.body = resp.Body
	return nil
}

func (t *HTTP) Read(p []byte) (int, error) {
	t.mu.Lock()
	body := t.body
	t.mu.Unlock()
	if body == nil {
		return 0, ErrNotOpen
	}
	return body.Read(p)
}

// StatusCode returns the status of the last Open, 0 before any.
func (t *HTTP) StatusCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Close shuts the body down, unblocking a concurrent Read.
func (t *HTTP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.body == nil {
		return nil
	}
	err := t.body.Close()
	t.body = nil
	return err
}
