package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"claimforge/compliance/pkg/config"
)

// StatusError is returned for a non-2xx response from the publisher.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is a polite HTTP client for publisher index pages and archives.
// Every attempt waits on a shared rate limiter, and failed attempts are
// retried with exponential backoff.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string

	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration

	logger *slog.Logger
}

// NewClient creates a Client from the sources configuration. If httpClient
// is nil a pooled client with cfg.Timeout is created.
func NewClient(cfg *config.SourcesConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
			Timeout: cfg.Timeout,
		}
	}

	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		http:            httpClient,
		limiter:         rate.NewLimiter(limit, burst),
		userAgent:       cfg.UserAgent,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.RetryInitialInterval,
		maxInterval:     cfg.RetryMaxInterval,
		logger:          slog.Default().With("component", "fetch"),
	}
}

// Get issues a GET for rawURL and hands a successful response to consume.
// Network errors, 5xx and 429 responses, and errors returned by consume are
// retried; other statuses fail immediately with a *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string, consume func(resp *http.Response) error) error {
	b := backoff.NewExponentialBackOff()
	if c.initialInterval > 0 {
		b.InitialInterval = c.initialInterval
	}
	if c.maxInterval > 0 {
		b.MaxInterval = c.maxInterval
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, c.do(ctx, rawURL, consume)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.WarnContext(ctx, "request failed, retrying",
				"url", rawURL,
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"backoff", next,
				"error", err,
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("GET %s failed after %d attempt(s): %w", rawURL, attempt, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, rawURL string, consume func(resp *http.Response) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.DebugContext(ctx, "sending request", "url", rawURL)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
		if !statusErr.Retryable() {
			return backoff.Permanent(statusErr)
		}
		return statusErr
	}

	if err := consume(resp); err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		return fmt.Errorf("reading response body: %w", err)
	}
	return nil
}

// GetBytes fetches rawURL into memory, refusing bodies larger than limit
// bytes when limit is positive.
func (c *Client) GetBytes(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	var body []byte
	err := c.Get(ctx, rawURL, func(resp *http.Response) error {
		r := io.Reader(resp.Body)
		if limit > 0 {
			r = io.LimitReader(resp.Body, limit+1)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		if limit > 0 && int64(len(data)) > limit {
			return backoff.Permanent(fmt.Errorf("response body exceeds %d bytes", limit))
		}
		body = data
		return nil
	})
	return body, err
}
