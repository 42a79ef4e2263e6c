// Package httpclient is the JSON client shared by the chain, issuance, oracle
// and gateway integrations: per-service timeouts, bounded retries for reads
// and a consecutive-failure circuit breaker.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit_open")

// StatusError carries a non-2xx response.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, bytes.TrimSpace(body))
}

type Options struct {
	Timeout          time.Duration
	RetryMax         int
	RetryBase        time.Duration
	FailureThreshold int
	OpenFor          time.Duration
	Transport        http.RoundTripper
}

type Client struct {
	inner   *http.Client
	service string
	opts    Options

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	now       func() time.Time
}

func New(service string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 200 * time.Millisecond
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenFor <= 0 {
		opts.OpenFor = 30 * time.Second
	}
	return &Client{
		inner:   &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		service: service,
		opts:    opts,
		now:     time.Now,
	}
}

func (c *Client) Service() string { return c.service }

// GetJSON decodes a 2xx body into out. Network errors and 5xx responses are
// retried with exponential backoff.
func (c *Client) GetJSON(ctx context.Context, endpoint string, headers map[string]string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.opts.RetryMax; attempt++ {
		if attempt > 0 {
			metricRetries.Add(c.service, 1)
			delay := c.opts.RetryBase * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		_, body, err := c.Do(ctx, http.MethodGet, endpoint, headers, nil)
		if err == nil {
			return decode(body, out)
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}
	return lastErr
}

// PostJSON sends body once; writes are never retried.
func (c *Client) PostJSON(ctx context.Context, endpoint string, headers map[string]string, body, out any) error {
	_, raw, err := c.Do(ctx, http.MethodPost, endpoint, headers, body)
	if err != nil {
		return err
	}
	return decode(raw, out)
}

// Do performs one request. Non-2xx responses return the body together with
// a *StatusError.
func (c *Client) Do(ctx context.Context, method, endpoint string, headers map[string]string, body any) (int, []byte, error) {
	if err := c.beforeSend(); err != nil {
		return 0, nil, err
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	metricRequests.Add(c.service, 1)
	resp, err := c.inner.Do(req)
	if err != nil {
		c.afterFailure()
		metricFailures.Add(c.service, 1)
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if readErr != nil {
		c.afterFailure()
		metricFailures.Add(c.service, 1)
		return resp.StatusCode, nil, readErr
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.afterSuccess()
		return resp.StatusCode, raw, nil
	}
	if resp.StatusCode >= 500 {
		c.afterFailure()
	}
	metricFailures.Add(c.service, 1)
	return resp.StatusCode, raw, &StatusError{Status: resp.StatusCode, Body: raw}
}

func decode(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 500 || se.Status == http.StatusTooManyRequests
	}
	return true
}

// IsTimeout reports whether err is a client-side deadline, as opposed to a
// refused or failed request.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c *Client) beforeSend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.openUntil.IsZero() && c.now().Before(c.openUntil) {
		metricCircuitOpen.Add(c.service, 1)
		return fmt.Errorf("%s: %w", c.service, ErrCircuitOpen)
	}
	return nil
}

func (c *Client) afterFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.opts.FailureThreshold {
		c.openUntil = c.now().Add(c.opts.OpenFor)
		c.failures = 0
	}
}

func (c *Client) afterSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.openUntil = time.Time{}
}
