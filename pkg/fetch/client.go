// Package fetch performs the remote GET requests of the pipeline and stages
// their results exactly once per index.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrTransient marks connection-level failures (no HTTP response at all).
// A later run may retry them.
var ErrTransient = errors.New("transient network failure")

// maxBodySize bounds a single response body.
const maxBodySize = 32 * 1024 * 1024

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the request succeeded with 200.
func (r *Response) OK() bool { return r.StatusCode == http.StatusOK }

// ClientConfig configures a Client.
type ClientConfig struct {
	Timeout   time.Duration // Default: 30s.
	UserAgent string
	// RateLimit is a requests-per-second ceiling. 0 means unlimited.
	RateLimit float64
	// Transport replaces the default pooled transport when set.
	Transport http.RoundTripper
}

// Client issues plain GET requests with status-code inspection.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	c := &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		userAgent: cfg.UserAgent,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// Get fetches url. Any HTTP response, whatever its status, is returned
// without error; failures to obtain or read a response wrap ErrTransient.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: get %s: %v", ErrTransient, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrTransient, url, err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
