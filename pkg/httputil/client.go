package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/arbfilter/pkg/logger"
)

// Client is a retrying HTTP client for quote sources and arbfilter servers
// ⭐ SSOT: 모든 외부 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	http      *http.Client
	log       *logger.Logger
	retry     retryPolicy
	userAgent string
}

// retryPolicy: attempts counts every try, so 1 means no retry
type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-attempt timeout (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRetry retries up to maxRetries times, doubling initialDelay each time.
func WithRetry(maxRetries int, initialDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.attempts = maxRetries + 1
		c.retry.base = initialDelay
	}
}

// WithoutRetry sends each request once. Use it for non-idempotent calls.
func WithoutRetry() Option {
	return func(c *Client) { c.retry.attempts = 1 }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client: 30s timeout, 3 retries from 1s, capped at 10s.
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       log,
		retry:     retryPolicy{attempts: 4, base: time.Second, max: 10 * time.Second},
		userAgent: "arbfilter",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.attempts < 1 {
		c.retry.attempts = 1
	}
	return c
}

// =============================================================================
// Requests
// =============================================================================

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	return c.do(req)
}

// PostJSON performs a POST request with a JSON body. The body is replayed on retry.
func (c *Client) PostJSON(ctx context.Context, url string, data interface{}) (*http.Response, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// StatusError reports a non-2xx response from Fetch
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.StatusCode)
}

// ErrTooLarge is returned by Fetch when the body exceeds the limit.
var ErrTooLarge = errors.New("response body too large")

// Fetch GETs url and returns the body of a 2xx response, at most limit bytes.
func (c *Client) Fetch(ctx context.Context, url string, limit int64) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%s: %w (limit %d bytes)", url, ErrTooLarge, limit)
	}
	return body, nil
}

// =============================================================================
// Retry loop
// =============================================================================

// do sends req until it gets a non-retryable answer or runs out of attempts.
// The last response is returned as-is, even when its status is retryable.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	log := c.log.WithFields(map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})
	start := time.Now()

	var (
		resp *http.Response
		err  error
	)
	for attempt := 1; ; attempt++ {
		if attempt > 1 && req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", berr)
			}
			req.Body = body
		}

		resp, err = c.http.Do(req)
		if err == nil && !IsRetryableError(resp.StatusCode) {
			log.WithFields(map[string]interface{}{
				"status_code": resp.StatusCode,
				"attempts":    attempt,
				"duration":    time.Since(start),
			}).Debug("HTTP request completed")
			return resp, nil
		}
		if attempt >= c.retry.attempts {
			break
		}

		wait := c.retry.delay(attempt, resp)
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		log.WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   wait,
		}).Warn("Retrying HTTP request")

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(wait):
		}
	}

	if err != nil {
		log.WithError(err).WithField("duration", time.Since(start)).Error("HTTP request failed")
		return nil, err
	}
	return resp, nil
}

// delay is base·2^(attempt-1) capped at max. A Retry-After in seconds wins
// when it is shorter than the cap.
func (p retryPolicy) delay(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			if d := time.Duration(secs) * time.Second; d <= p.max {
				return d
			}
		}
	}

	d := p.base
	for i := 1; i < attempt && d < p.max; i++ {
		d *= 2
	}
	if d > p.max {
		d = p.max
	}
	return d
}

// IsRetryableError checks if a status should be retried
func IsRetryableError(statusCode int) bool {
	// 5xx and 429 Too Many Requests
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
