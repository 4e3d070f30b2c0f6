// Package rpcclient provides a small JSON-over-HTTP client for the REST
// APIs the wallet talks to (price feed, TronGrid, Blockchair).
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

// Client is a JSON HTTP client bound to a base URL.
type Client struct {
	base    string
	http    *http.Client
	retries int
	header  http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithRetries sets how many times a failed GET is retried. POSTs are never
// retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retries = n
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// New creates a client targeting base.
func New(base string, opts ...Option) *Client {
	return NewWithTimeout(base, 10*time.Second, opts...)
}

// NewWithTimeout creates a client with a custom per-request timeout.
func NewWithTimeout(base string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: timeout},
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Base returns the base URL.
func (c *Client) Base() string {
	return c.base
}

// HTTPError is returned for non-2xx responses. Body holds the raw response
// text so callers can surface it verbatim.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
}

// TransportError wraps failures where no HTTP response was received
// (timeouts, refused connections). The request may or may not have reached
// the server.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err carries a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// GetJSON issues GET base+path with query and decodes the body into result.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, result any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.withRetry(ctx, func() error {
		return c.do(ctx, http.MethodGet, u, nil, result)
	})
}

// QueryJSON POSTs body to an idempotent read endpoint (TronGrid exposes its
// reads as POST). Unlike PostJSON it is retried like GetJSON.
func (c *Client) QueryJSON(ctx context.Context, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.withRetry(ctx, func() error {
		return c.do(ctx, http.MethodPost, c.base+path, data, result)
	})
}

func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &TransportError{Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}
		err = fn()
		if !retryable(err) {
			return err
		}
	}
	return err
}

// PostJSON issues a single POST of body (JSON-encoded) and decodes the
// response into result.
func (c *Client) PostJSON(ctx context.Context, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.base+path, data, result)
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if IsTransport(err) {
		return true
	}
	var he *HTTPError
	return errors.As(err, &he) && (he.Status >= 500 || he.Status == http.StatusTooManyRequests)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, result any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
