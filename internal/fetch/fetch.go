// Package fetch downloads search pages and feeds with browser-like headers.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/deusflow/sandboxbot/internal/logger"
	"github.com/deusflow/sandboxbot/internal/metrics"
	"github.com/deusflow/sandboxbot/internal/news"
	"github.com/deusflow/sandboxbot/internal/ratelimit"
)

// UserAgentChrome is sent unless the caller overrides User-Agent;
// several surfaces reject obviously automated agents.
const UserAgentChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const maxBodyBytes = 2 << 20

// ErrEmptyBody is returned for a 2xx response without content.
var ErrEmptyBody = errors.New("empty response body")

// StatusError is a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// Temporary reports whether retrying later may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Client struct {
	http      *http.Client
	timeout   time.Duration
	userAgent string
	limiter   *ratelimit.HostLimiter
	metrics   *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithLimiter(l *ratelimit.HostLimiter) Option { return func(c *Client) { c.limiter = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New creates a client whose every request is bounded by timeout.
func New(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{},
		timeout:   timeout,
		userAgent: UserAgentChrome,
		metrics:   metrics.Global,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch GETs rawURL and returns the body decoded to UTF-8.
// Any failure, including a non-2xx status, is returned as an error.
func (c *Client) Fetch(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	host := news.HostOf(rawURL)
	// the limiter wait counts against the same per-call budget
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx, host); err != nil {
		return "", fmt.Errorf("rate limit %s: %w", host, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	body, err := c.do(req)
	outcome := "ok"
	var se *StatusError
	switch {
	case errors.As(err, &se):
		outcome = fmt.Sprintf("status_%d", se.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	c.metrics.ObserveFetch(host, outcome, time.Since(start))
	if err != nil {
		logger.Debug("fetch failed", "host", host, "error", err)
		return "", err
	}
	logger.Debug("fetched", "host", host, "bytes", len(body), "elapsed", time.Since(start))
	return body, nil
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", req.URL.Redacted(), err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &StatusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode}
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", ErrEmptyBody
	}
	return string(data), nil
}
