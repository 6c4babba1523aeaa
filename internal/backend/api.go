package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"growgent/internal/types"
)

// Config configures the backend client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Retry     RetryPolicy
	UserAgent string
}

// Client calls the Growgent backend. Every request is bounded by Config.Timeout.
type Client struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config, logger *slog.Logger, opts ...BaseClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "growgent-map/1.0"
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		base:    NewBaseClient(httpClient, "growgent-backend", cfg.Retry, cfg.UserAgent, opts...),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// envelope is the backend's response wrapper. FastAPI validation and
// HTTPException failures use detail instead.
type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Detail  json.RawMessage `json:"detail"`
}

func (e envelope) errorMessage() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Error != "":
		return e.Error
	case len(e.Errors) > 0:
		return strings.Join(e.Errors, "; ")
	case len(e.Detail) > 0:
		var s string
		if json.Unmarshal(e.Detail, &s) == nil {
			return s
		}
		return string(e.Detail)
	}
	return "backend request failed"
}

// FieldQuery filters ListFields.
type FieldQuery struct {
	FarmID   string
	CropType string
	Page     int
	PageSize int
}

// AlertQuery filters ListAlerts.
type AlertQuery struct {
	FieldID      string
	Severity     string
	Acknowledged *bool
	Page         int
	PageSize     int
}

// RecommendationQuery filters ListRecommendations.
type RecommendationQuery struct {
	FieldID  string
	Accepted *bool
	Page     int
	PageSize int
}

func (c *Client) ListFields(ctx context.Context, q FieldQuery) (*types.FieldList, error) {
	v := url.Values{}
	setString(v, "farm_id", q.FarmID)
	setString(v, "crop_type", q.CropType)
	setPage(v, q.Page, q.PageSize)

	var out types.FieldList
	if err := c.call(ctx, http.MethodGet, "/api/fields", v, types.ErrCodeNotFoundField, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetField(ctx context.Context, id string) (*types.Field, error) {
	var out types.Field
	if err := c.call(ctx, http.MethodGet, "/api/fields/"+url.PathEscape(id), nil, types.ErrCodeNotFoundField, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAlerts(ctx context.Context, q AlertQuery) (*types.AlertList, error) {
	v := url.Values{}
	setString(v, "field_id", q.FieldID)
	setString(v, "severity", q.Severity)
	setBool(v, "acknowledged", q.Acknowledged)
	setPage(v, q.Page, q.PageSize)

	var out types.AlertList
	if err := c.call(ctx, http.MethodGet, "/api/alerts", v, types.ErrCodeNotFoundAlert, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AcknowledgeAlert(ctx context.Context, id string) (*types.Alert, error) {
	var out types.Alert
	path := "/api/alerts/" + url.PathEscape(id) + "/acknowledge"
	if err := c.call(ctx, http.MethodPost, path, nil, types.ErrCodeNotFoundAlert, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListRecommendations(ctx context.Context, q RecommendationQuery) (*types.RecommendationList, error) {
	v := url.Values{}
	setString(v, "field_id", q.FieldID)
	setBool(v, "accepted", q.Accepted)
	setPage(v, q.Page, q.PageSize)

	var out types.RecommendationList
	if err := c.call(ctx, http.MethodGet, "/api/agents/irrigation/recommendations", v, types.ErrCodeNotFoundRecommendation, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AcceptRecommendation(ctx context.Context, id string) (*types.APIRecommendation, error) {
	var out types.APIRecommendation
	path := "/api/recommendations/" + url.PathEscape(id) + "/accept"
	if err := c.call(ctx, http.MethodPost, path, nil, types.ErrCodeNotFoundRecommendation, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetWaterSummary(ctx context.Context, farmID string) (*types.WaterMetricsSummary, error) {
	v := url.Values{}
	v.Set("farm_id", farmID)

	var out types.WaterMetricsSummary
	if err := c.call(ctx, http.MethodGet, "/api/metrics/water/summary", v, types.ErrCodeNotFoundField, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks the backend's unauthenticated /health endpoint, which answers
// {"status": "healthy"} outside the usual envelope.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build health request", err)
	}
	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	if resp.StatusCode != http.StatusOK {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("backend health returned %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Status != "healthy" {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "backend reported unhealthy", err)
	}
	return nil
}

// call performs one request and decodes the envelope's data into out. A 404
// becomes notFound; any other non-success envelope becomes
// upstream_backend_error carrying the backend's message.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, notFound types.ErrorCode, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build backend request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.base.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "backend request failed",
			"method", method,
			"path", path,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "failed to read backend response", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusNotFound {
		return types.NewAppError(notFound, env.errorMessage(), nil)
	}
	if decodeErr != nil {
		return types.NewAppError(types.ErrCodeUpstreamBackendError,
			fmt.Sprintf("backend returned %d with an unreadable body", resp.StatusCode), decodeErr)
	}
	if resp.StatusCode >= 400 || env.Status != "success" {
		return types.NewAppError(types.ErrCodeUpstreamBackendError, env.errorMessage(), nil).
			WithDetails(map[string]any{"status_code": resp.StatusCode})
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return types.NewAppError(types.ErrCodeUpstreamBackendError, "failed to decode backend data", err)
		}
	}

	c.logger.DebugContext(ctx, "backend request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func setString(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func setBool(v url.Values, key string, val *bool) {
	if val != nil {
		v.Set(key, strconv.FormatBool(*val))
	}
}

func setPage(v url.Values, page, size int) {
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		v.Set("page_size", strconv.Itoa(size))
	}
}
