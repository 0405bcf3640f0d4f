// Package httpclient provides an enhanced HTTP client with retry, rate
// limiting, and timeout support for collaborator probes.
package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"redtrace/internal/platform/errors"
	"redtrace/internal/platform/logx"
)

// Client is an HTTP client with retry logic, rate limiting, and timeout support.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logx.Logger
	config     Config
}

// Config holds the configuration for the HTTP client.
type Config struct {
	// Timeout is the per-request timeout duration. Default: 30 seconds.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts. Default: 2.
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	// Backoff doubles with each retry. Default: 1 second.
	RetryBackoff time.Duration

	// MaxRetryBackoff caps the backoff duration. Default: 15 seconds.
	MaxRetryBackoff time.Duration

	// UserAgent is the User-Agent header value. Default: "redtrace/1.0".
	UserAgent string

	// RateLimit is the maximum requests per second. 0 means no limit.
	RateLimit float64

	// RateLimitBurst is the burst size for rate limiting. Default: 1.
	RateLimitBurst int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    1 * time.Second,
		MaxRetryBackoff: 15 * time.Second,
		UserAgent:       "redtrace/1.0",
		RateLimit:       0,
		RateLimitBurst:  1,
	}
}

// New creates a new HTTP client with the given configuration.
func New(config Config, logger logx.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = 1 * time.Second
	}
	if config.MaxRetryBackoff == 0 {
		config.MaxRetryBackoff = 15 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "redtrace/1.0"
	}
	if config.RateLimitBurst == 0 {
		config.RateLimitBurst = 1
	}
	if logger == nil {
		logger = logx.New()
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimitBurst)
	}

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
		logger:     logger.With("component", "httpclient"),
		config:     config,
	}
}

// Request performs an HTTP request with retry logic and rate limiting.
// The caller owns the response body.
func (c *Client) Request(ctx context.Context, method, rawURL string, headers map[string]string) (*http.Response, error) {
	var lastErr error

	backoff := c.config.RetryBackoff
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, errors.Wrap(err, "rate limit wait failed")
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create request for %s %s", method, rawURL)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		c.logger.Debug("HTTP request",
			"method", method,
			"url", rawURL,
			"attempt", attempt+1,
		)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "request canceled")
			}
			if attempt == c.config.MaxRetries {
				break
			}
			c.sleep(ctx, backoff)
			backoff = c.nextBackoff(backoff)
			continue
		}

		if retryableStatus(resp.StatusCode) && attempt < c.config.MaxRetries {
			resp.Body.Close()
			lastErr = errors.Errorf("server returned status %d", resp.StatusCode)
			c.sleep(ctx, backoff)
			backoff = c.nextBackoff(backoff)
			continue
		}

		return resp, nil
	}

	return nil, errors.Wrapf(lastErr, "request failed after %d attempts", c.config.MaxRetries+1)
}

// Get performs a GET request and returns the response body.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, *http.Response, error) {
	resp, err := c.Request(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, resp, errors.Wrap(err, "read response body")
	}
	return body, resp, nil
}

// GetWithParams performs a GET request with query parameters.
func (c *Client) GetWithParams(ctx context.Context, rawURL string, params map[string]string) ([]byte, *http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "parse url %s", rawURL)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return c.Get(ctx, u.String())
}

// FetchJSON performs a GET request expecting a JSON body and returns it raw.
func (c *Client) FetchJSON(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.Request(ctx, http.MethodGet, rawURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(errors.ErrInvalidResponse, "unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 50<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "json") && !strings.Contains(ct, "text") {
		return nil, errors.Wrapf(errors.ErrInvalidResponse, "unexpected content type %q", ct)
	}
	return body, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (c *Client) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > c.config.MaxRetryBackoff {
		return c.config.MaxRetryBackoff
	}
	return next
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
