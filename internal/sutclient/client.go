// Package sutclient implements core.APIClient: the Agent's one non-rollbackable
// collaborator, issuing mutating HTTP requests against the System Under Test.
// There is deliberately no retry/backoff machinery here — the exploration loop
// issues each request exactly once so an action's observed outcome is never
// silently masked by an automatic retry.
package sutclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client is the default core.APIClient implementation for real HTTP SUTs.
type Client struct {
	http          *http.Client
	baseURL       string
	defaultHeader http.Header
	limiter       *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient swaps in a custom *http.Client (e.g. with a custom transport
// or timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDefaultHeaders sets headers applied to every request (e.g.
// Authorization), before any per-call headers are merged in.
func WithDefaultHeaders(h http.Header) Option {
	return func(c *Client) { c.defaultHeader = h.Clone() }
}

// WithRateLimit caps outbound request throughput, protecting a shared or
// fragile SUT from being hammered by a fast-exploring strategy.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst) }
}

// New builds a Client targeting baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:          &http.Client{Timeout: 30 * time.Second},
		baseURL:       strings.TrimRight(baseURL, "/"),
		defaultHeader: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Do issues one HTTP request against the SUT (core.APIClient).
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.defaultHeader {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	return c.http.Do(req)
}
