// Package api is the REST client for the watchfloor backend: sources,
// articles, enrichment and feed management.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/watchfloor/internal/enrich"
	"github.com/abelbrown/watchfloor/internal/logging"
)

// Compile-time interface satisfaction check
var _ enrich.Service = (*Client)(nil)

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string        // sent as a bearer token when set
	Timeout time.Duration // per request; default 30s
	Rate    float64       // requests per second; default 5
	Burst   int           // default 5
}

// Client talks to the backend. Safe for concurrent use.
type Client struct {
	base     *url.URL
	token    string
	client   *http.Client
	limiter  *rate.Limiter
	backoffs []time.Duration
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: base URL must be http or https, got %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	return &Client{
		base:     base,
		token:    cfg.Token,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		backoffs: []time.Duration{500 * time.Millisecond, 1 * time.Second},
	}, nil
}

// endpoint joins the base URL and an already-escaped path.
func (c *Client) endpoint(path string, query url.Values) string {
	target := c.base.String() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// do sends a request and returns the body of a 2xx response.
// Retries on 429, 502 and 504 with backoff, honoring Retry-After on 429.
// 503 is not retried: the backend uses it for "enrichment unconfigured".
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}
	target := c.endpoint(path, query)

	var lastErr error
	for attempt := 0; attempt <= len(c.backoffs); attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("%s %s: %w", method, path, err)
			if !c.sleep(ctx, attempt, 0) {
				return nil, ctx.Err()
			}
			continue
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			if !c.sleep(ctx, attempt, 0) {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		apiErr := newStatusError(method, path, resp.StatusCode, respBody)
		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusGatewayTimeout:
			lastErr = apiErr
			var retryAfter time.Duration
			if resp.StatusCode == http.StatusTooManyRequests {
				if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
					retryAfter = min(time.Duration(secs)*time.Second, 30*time.Second)
				}
			}
			logging.Debug("api retryable error", "path", path, "status", resp.StatusCode, "attempt", attempt)
			if !c.sleep(ctx, attempt, retryAfter) {
				return nil, ctx.Err()
			}
			continue
		}
		return nil, classify(apiErr)
	}
	return nil, fmt.Errorf("%s %s failed after %d retries: %w", method, path, len(c.backoffs), lastErr)
}

// sleep waits before the next attempt. Returns false if ctx ended.
func (c *Client) sleep(ctx context.Context, attempt int, override time.Duration) bool {
	if attempt >= len(c.backoffs) {
		return ctx.Err() == nil
	}
	delay := c.backoffs[attempt]
	if override > 0 {
		delay = override
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}
