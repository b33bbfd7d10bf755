// Package httpretry provides an HTTP client that retries server-side
// failures under an injected, bounded retry policy.
package httpretry

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *Client satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryHook observes every failed attempt that will be retried.
type RetryHook func(req *http.Request, attempt, status int, err error)

// Client wraps an HTTPDoer and retries while the upstream answers 5xx or the
// transport fails. Any other status, 4xx included, is handed back untouched.
type Client struct {
	doer    HTTPDoer
	policy  Policy
	sleeper Sleeper
	onRetry RetryHook
}

// Option customizes a Client.
type Option func(*Client)

// WithSleeper replaces the real timer, mainly for tests.
func WithSleeper(s Sleeper) Option { return func(c *Client) { c.sleeper = s } }

// WithRetryHook registers an observer for retried attempts.
func WithRetryHook(h RetryHook) Option { return func(c *Client) { c.onRetry = h } }

// NewClient creates a retrying client. If doer is nil a transport with
// finite dial/TLS timeouts and a 30s overall timeout is used.
func NewClient(doer HTTPDoer, policy Policy, opts ...Option) *Client {
	if doer == nil {
		doer = NewHTTPClient(30 * time.Second)
	}
	c := &Client{doer: doer, policy: policy.normalized(), sleeper: timerSleeper{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHTTPClient builds an *http.Client with bounded connection timeouts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Policy returns the retry policy in use.
func (c *Client) Policy() Policy { return c.policy }

// Get issues a GET request with retry.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("httpretry: build request: %w", err)
	}
	return c.Do(req)
}

// Do executes the request, retrying on 5xx responses and transport errors
// until the policy's attempt budget is spent. Between attempts it sleeps for
// Policy.Backoff(n). When the budget is exhausted it returns a *FetchError.
// Context cancellation is returned as-is and never retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var (
		lastStatus int
		lastErr    error
	)

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if attempt > 1 {
			// Reset request body for retry if applicable
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: failed to reset request body: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := c.doer.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr, lastStatus = err, 0
		} else if !isServerError(resp.StatusCode) {
			return resp, nil
		} else {
			// drain for connection reuse
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr, lastStatus = nil, resp.StatusCode
		}

		if attempt == c.policy.MaxAttempts {
			break
		}

		if c.onRetry != nil {
			c.onRetry(req, attempt, lastStatus, lastErr)
		}
		delay := c.policy.Backoff(attempt)
		log.Printf("httpretry: retry %d/%d for %s %s%s (status=%d, waiting %s)",
			attempt, c.policy.MaxAttempts-1, req.Method, req.URL.Host, req.URL.Path, lastStatus, delay)
		if err := c.sleeper.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &FetchError{
		URL:        RedactURL(req.URL.String()),
		Retries:    c.policy.MaxAttempts,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

func isServerError(status int) bool {
	return status >= http.StatusInternalServerError && status <= 599
}
