package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"trade-app/internal/logger"
)

const (
	// maxReplyBytes bounds how much of a reply is read into memory.
	maxReplyBytes = 8 << 20
	// maxErrorBody bounds the reply text kept on a StatusError.
	maxErrorBody = 512
)

// Client posts JSON payloads to model endpoints and decodes JSON replies.
// It has no timeout of its own unless WithTimeout is given; the caller's
// context deadline bounds each call.
type Client struct {
	http    *http.Client
	headers http.Header
	verbose bool
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout caps every call at d. Zero disables the cap.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHeader adds a header sent on every call.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithLogging logs each call at debug level and error replies at warn.
func WithLogging(enabled bool) Option {
	return func(c *Client) {
		c.verbose = enabled
	}
}

// WithTransport replaces the round tripper, mostly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = rt
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a reply outside the 2xx range.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Timeout reports whether the upstream (or a gateway in front of it) gave up
// waiting for the model.
func (e *StatusError) Timeout() bool {
	return e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusGatewayTimeout
}

// PostJSON sends in as a JSON body to url and decodes a 2xx reply into out.
// Non-2xx replies come back as *StatusError.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key := range c.headers {
		req.Header.Set(key, c.headers.Get(key))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}

	if c.verbose {
		logger.Debug(ctx, "Model endpoint replied",
			"url", url,
			"status", resp.StatusCode,
			"request_bytes", len(payload),
			"reply_bytes", len(body),
			"duration", time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode, Body: clip(body)}
		if c.verbose {
			logger.Warn(ctx, "Model endpoint error", "url", url, "status", se.StatusCode, "body", se.Body)
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

func clip(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
