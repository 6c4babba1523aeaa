package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growgent/internal/types"
)

// --- Test Helpers ---

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) { s.waits = append(s.waits, d) }

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...BaseClientOption) (*Client, *sleepRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newClientFor(srv.URL, time.Second, opts...)
}

func newClientFor(baseURL string, timeout time.Duration, opts ...BaseClientOption) (*Client, *sleepRecorder) {
	rec := &sleepRecorder{}
	opts = append([]BaseClientOption{WithSleepFunc(rec.sleep)}, opts...)
	c := NewClient(Config{
		BaseURL: baseURL + "/",
		Timeout: timeout,
		Retry:   DefaultRetryPolicy(),
	}, nil, opts...)
	return c, rec
}

func writeEnvelope(w http.ResponseWriter, status int, env map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func requireCode(t *testing.T, err error, code types.ErrorCode) *types.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*types.AppError)
	require.True(t, ok, "expected *types.AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

// --- Envelope Tests ---

func TestListFields_DecodesEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/fields", r.URL.Path)
		assert.Equal(t, "farm-1", r.URL.Query().Get("farm_id"))
		assert.Equal(t, "50", r.URL.Query().Get("page_size"))
		assert.Empty(t, r.URL.Query().Get("crop_type"))
		writeEnvelope(w, http.StatusOK, map[string]any{
			"status": "success",
			"data": map[string]any{
				"fields": []map[string]any{
					{"id": "f1", "farm_id": "farm-1", "name": "North", "location_geom": "POINT(-121.5 38.5)"},
				},
				"total": 1, "page": 1, "page_size": 50,
			},
		})
	})

	list, err := c.ListFields(context.Background(), FieldQuery{FarmID: "farm-1", PageSize: 50})
	require.NoError(t, err)
	require.Len(t, list.Fields, 1)
	assert.Equal(t, "North", list.Fields[0].Name)
	assert.Equal(t, "POINT(-121.5 38.5)", *list.Fields[0].LocationGeom)
	assert.Equal(t, 1, list.Total)
}

func TestCall_EnvelopeErrorCarriesMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{"status": "error", "message": "farm not configured"})
	})

	_, err := c.ListAlerts(context.Background(), AlertQuery{})
	appErr := requireCode(t, err, types.ErrCodeUpstreamBackendError)
	assert.Equal(t, "farm not configured", appErr.Message)
}

func TestCall_NotFoundUsesDetail(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, map[string]any{"detail": "Recommendation r1 not found"})
	})

	_, err := c.AcceptRecommendation(context.Background(), "r1")
	appErr := requireCode(t, err, types.ErrCodeNotFoundRecommendation)
	assert.Equal(t, "Recommendation r1 not found", appErr.Message)
}

func TestAcknowledgeAlert_PostsOnce(t *testing.T) {
	var calls atomic.Int32
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/alerts/a1/acknowledge", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.AcknowledgeAlert(context.Background(), "a1")
	requireCode(t, err, types.ErrCodeUpstreamUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "mutations are never retried")
	assert.Empty(t, rec.waits)
}

// --- Retry Tests ---

func TestGet_RetriesServerErrorsWithFixedBackoff(t *testing.T) {
	var calls atomic.Int32
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   map[string]any{"recommendations": []any{}, "total": 0, "page": 1, "page_size": 20},
		})
	})

	list, err := c.ListRecommendations(context.Background(), RecommendationQuery{})
	require.NoError(t, err)
	assert.Empty(t, list.Recommendations)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, rec.waits)
}

func TestGet_GivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.GetField(context.Background(), "f1")
	requireCode(t, err, types.ErrCodeUpstreamUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusBadRequest, map[string]any{"detail": "Page must be >= 1"})
	})

	_, err := c.ListFields(context.Background(), FieldQuery{})
	appErr := requireCode(t, err, types.ErrCodeUpstreamBackendError)
	assert.Equal(t, "Page must be >= 1", appErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

// --- Failure Classification Tests ---

func TestGet_TimeoutIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	c, _ := newClientFor(srv.URL, 20*time.Millisecond)

	_, err := c.GetWaterSummary(context.Background(), "farm-1")
	requireCode(t, err, types.ErrCodeUpstreamTimeout)
}

func TestGet_ConnectionRefusedIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	c, rec := newClientFor(addr, time.Second)

	_, err := c.ListFields(context.Background(), FieldQuery{})
	appErr := requireCode(t, err, types.ErrCodeUpstreamBackendOffline)
	assert.Equal(t, "backend offline", appErr.Message)
	assert.Len(t, rec.waits, 2)
}

func TestBreakerOpen_StopsCalling(t *testing.T) {
	var calls atomic.Int32
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "test",
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 },
	})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithBreaker(cb))

	_, err := c.AcknowledgeAlert(context.Background(), "a1")
	requireCode(t, err, types.ErrCodeUpstreamUnavailable)

	_, err = c.GetField(context.Background(), "f1")
	appErr := requireCode(t, err, types.ErrCodeUpstreamUnavailable)
	assert.Contains(t, appErr.Message, "circuit breaker")
	assert.Equal(t, int32(1), calls.Load())
}

func TestReadyToTrip_OpensOnFifthFailure(t *testing.T) {
	assert.False(t, readyToTrip(gobreaker.Counts{ConsecutiveFailures: breakerFailureThreshold - 1}))
	assert.True(t, readyToTrip(gobreaker.Counts{ConsecutiveFailures: breakerFailureThreshold}))
}

func TestRequestIDIsForwarded(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-7", r.Header.Get("X-Request-ID"))
		assert.Equal(t, "growgent-map/1.0", r.Header.Get("User-Agent"))
		writeEnvelope(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]any{"id": "f1"}})
	})

	ctx := types.WithRequestID(context.Background(), "req-7")
	f, err := c.GetField(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "f1", f.ID)
}

// --- Health Tests ---

func TestHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if healthy.Load() {
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	})

	require.NoError(t, c.Health(context.Background()))

	healthy.Store(false)
	requireCode(t, c.Health(context.Background()), types.ErrCodeUpstreamUnavailable)
}
