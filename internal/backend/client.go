// Package backend is the client for the Growgent backend HTTP API. All calls go
// through BaseClient, which applies the circuit breaker, retries idempotent
// reads and maps transport failures to AppErrors.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/sony/gobreaker/v2"

	"growgent/internal/types"
)

// RetryPolicy configures how reads are retried. Attempts counts the first try.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy returns three attempts spaced one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Backoff:  time.Second,
	}
}

// BaseClient wraps an *http.Client and a circuit breaker.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration) // for testability; defaults to time.Sleep
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep function used between retries.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) BaseClientOption {
	return func(c *BaseClient) {
		c.breaker = cb
	}
}

// breakerFailureThreshold is the number of consecutive failures that opens
// the default breaker.
const breakerFailureThreshold = 5

func readyToTrip(counts gobreaker.Counts) bool {
	return counts.ConsecutiveFailures >= breakerFailureThreshold
}

// NewBaseClient creates a BaseClient. The breaker trips after five consecutive
// failures and probes again after 30 seconds.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	retryPolicy RetryPolicy,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	if retryPolicy.Attempts < 1 {
		retryPolicy.Attempts = 1
	}
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: readyToTrip,
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	bc := &BaseClient{
		client:      httpClient,
		breaker:     cb,
		retryPolicy: retryPolicy,
		userAgent:   userAgent,
		sleepFn:     time.Sleep,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// Do executes the request through the circuit breaker.
//
// GET and HEAD requests are retried on transport errors and 5xx responses, up
// to RetryPolicy.Attempts with a fixed backoff. Other methods are attempted
// once. Any response below 500 is returned as-is and the caller closes its
// body. Exhausted attempts return an AppError classified by mapError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-Request-ID", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to read request body", err)
		}
		req.Body.Close()
	}

	maxAttempts := 1
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		maxAttempts = c.retryPolicy.Attempts
	}

	var lastResp *http.Response
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 {
				return r, fmt.Errorf("backend returned %d", r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if req.Context().Err() != nil {
			break
		}
		if attempt < maxAttempts-1 {
			c.sleepFn(c.retryPolicy.Backoff)
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, mapError(lastResp, lastErr)
}

// mapError classifies a failed exchange.
func mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "backend circuit breaker is open", err)
	}
	if resp != nil && resp.StatusCode >= 500 {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("backend returned %d after retries", resp.StatusCode), err)
	}
	if isTimeout(err) {
		return types.NewAppError(types.ErrCodeUpstreamTimeout, "backend request timed out", err)
	}
	if isOffline(err) {
		return types.NewAppError(types.ErrCodeUpstreamBackendOffline, "backend offline", err)
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "backend request failed", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isOffline(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
