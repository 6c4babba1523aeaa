package core

import (
	"context"
	"sync"
	"time"
)

// --- MockRateLimitStore ---

// MockRateLimitStore implements the RateLimitStore interface for testing.
type MockRateLimitStore struct {
	// Result is returned by IncrementAndCheck when no func is set.
	Result RateLimitResult

	// Err, if non-nil, is returned by IncrementAndCheck.
	Err error

	// IncrementAndCheckFunc, if set, overrides Result and Err.
	IncrementAndCheckFunc func(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)

	mu sync.Mutex

	// Calls records each invocation.
	Calls []RateLimitCall
}

// RateLimitCall captures the arguments of one IncrementAndCheck call.
type RateLimitCall struct {
	Key    string
	Limit  int
	Window time.Duration
}

// IncrementAndCheck implements the RateLimitStore interface.
func (m *MockRateLimitStore) IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, RateLimitCall{Key: key, Limit: limit, Window: window})
	m.mu.Unlock()

	if m.IncrementAndCheckFunc != nil {
		return m.IncrementAndCheckFunc(ctx, key, limit, window)
	}
	return m.Result, m.Err
}

// --- MockMetricsCollector ---

// MockMetricsCollector records RecordRequest calls.
type MockMetricsCollector struct {
	mu       sync.Mutex
	Requests []RecordedRequest
}

// RecordedRequest captures one RecordRequest call.
type RecordedRequest struct {
	Method   string
	Endpoint string
	Status   string
	Duration time.Duration
}

// RecordRequest implements MetricsCollector.
func (m *MockMetricsCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, RecordedRequest{Method: method, Endpoint: endpoint, Status: status, Duration: duration})
}

// Recorded returns a copy of the recorded calls.
func (m *MockMetricsCollector) Recorded() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.Requests...)
}

var (
	_ RateLimitStore   = (*MockRateLimitStore)(nil)
	_ MetricsCollector = (*MockMetricsCollector)(nil)
)
