// Package httpretry issues HTTP requests against flaky upstream services
// with bounded retries on throttling, server errors and timeouts.
package httpretry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxBodyBytes = 20 << 20

// StatusError is returned for a final non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("status code: %d body=%s", e.StatusCode, e.Body)
}

type Client struct {
	HTTP      *http.Client
	Attempts  int
	BaseDelay time.Duration
}

func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{HTTP: &http.Client{Timeout: timeout}, Attempts: 4, BaseDelay: time.Second}
}

// Do sends the request produced by build, rebuilding it for each attempt.
// It returns the body of the first 2xx response and the number of attempts
// made.
func (c *Client) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, int, error) {
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	timeoutRetried := false
	for attempt := 1; attempt <= attempts; attempt++ {
		body, code, retryAfter, err := c.once(ctx, build)
		if err == nil {
			return body, attempt, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		var wait time.Duration
		switch {
		case code == http.StatusTooManyRequests:
			wait = retryAfter
			if wait <= 0 {
				wait = c.backoff(attempt)
			}
		case code >= 500:
			wait = c.backoff(attempt)
		case code == 0 && isTimeout(err):
			if timeoutRetried {
				return nil, attempt, err
			}
			timeoutRetried = true
			wait = c.backoff(attempt)
		default:
			return nil, attempt, err
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, attempt, err
		}
	}
	return nil, attempts, lastErr
}

func (c *Client) once(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, int, time.Duration, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, 0, 0, err
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))

	retryAfter := parseRetryAfter(res.Header.Get("Retry-After"))
	if res.StatusCode >= 400 {
		snippet := string(b)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, res.StatusCode, retryAfter, &StatusError{StatusCode: res.StatusCode, Body: snippet}
	}
	return b, res.StatusCode, retryAfter, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	base := c.BaseDelay
	switch attempt {
	case 1:
		return base
	case 2:
		return 2 * base
	default:
		return 4 * base
	}
}

func parseRetryAfter(v string) time.Duration {
	if strings.TrimSpace(v) == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
