package core

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"growgent/internal/types"
)

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestRecoverer_NoPanic(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != `{"ok":true}` {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestRecoverer_PanicReturnsEnvelope(t *testing.T) {
	srv := newTestServer(t)
	logger, buf := bufferLogger()
	srv.Logger = logger

	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(`nil "zone" repo`)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/zones", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "req-panic"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	detail := decodeErrorBody(t, rec)
	if detail.Code != string(types.ErrCodeInternalUnexpected) || detail.RequestID != "req-panic" {
		t.Errorf("unexpected detail %+v", detail)
	}
	if strings.Contains(detail.Message, "zone") {
		t.Error("panic value leaked to the client")
	}
	if !strings.Contains(buf.String(), "panic recovered") || !strings.Contains(buf.String(), "stack") {
		t.Errorf("expected a logged stack trace, got %s", buf.String())
	}
}

func TestEscapeJSON(t *testing.T) {
	in := "line\n\"quoted\"\t\\path\r"
	var out string
	if err := json.Unmarshal([]byte(`"`+escapeJSON(in)+`"`), &out); err != nil {
		t.Fatalf("escaped string is not valid JSON: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %q, want %q", out, in)
	}
}

func TestRequestLogger_RedactsHeaders(t *testing.T) {
	logger, buf := bufferLogger()
	handler := RequestLogger(logger, defaultRedactedHeaders)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/zones", nil)
	req.Header.Set("Authorization", "Bearer farm-secret")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Header.Set("Accept", "application/json")
	ctx := types.WithRequestID(req.Context(), "req-log")
	ctx = types.WithClientIP(ctx, "192.0.2.3")
	handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["level"] != "INFO" || entry["status"] != float64(http.StatusCreated) {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["request_id"] != "req-log" || entry["client_ip"] != "192.0.2.3" {
		t.Errorf("missing request context in %v", entry)
	}
	headers, _ := entry["headers"].(map[string]any)
	if headers["Authorization"] != "[REDACTED]" || headers["Sec-Websocket-Key"] != "[REDACTED]" {
		t.Errorf("sensitive headers not redacted: %v", headers)
	}
	if headers["Accept"] != "application/json" {
		t.Errorf("Accept header = %v", headers["Accept"])
	}
	if strings.Contains(buf.String(), "farm-secret") {
		t.Error("authorization value leaked into logs")
	}
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		logger, buf := bufferLogger()
		handler := RequestLogger(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if !strings.Contains(buf.String(), `"level":"`+tt.level+`"`) {
			t.Errorf("status %d: expected level %s, got %s", tt.status, tt.level, buf.String())
		}
	}
}

func TestMetricsMiddleware_NilCollector(t *testing.T) {
	srv := newTestServer(t)
	called := false
	srv.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Error("expected pass-through")
	}
}

func TestMetricsMiddleware_UnmatchedRoute(t *testing.T) {
	srv := newTestServer(t)
	metrics := &MockMetricsCollector{}
	srv.Metrics = metrics
	srv.MountRoutes()

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	recorded := metrics.Recorded()
	if len(recorded) != 1 {
		t.Fatalf("expected one metric, got %d", len(recorded))
	}
	if recorded[0].Endpoint != "unmatched" || recorded[0].Status != "404" {
		t.Errorf("metric = %+v", recorded[0])
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       "1; mode=block",
	}
	for k, v := range want {
		if rec.Header().Get(k) != v {
			t.Errorf("%s = %q, want %q", k, rec.Header().Get(k), v)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantVary   bool
		wantStatus int
	}{
		{"wildcard", []string{"*"}, "http://localhost:5173", http.MethodGet, "*", false, http.StatusOK},
		{"listed origin", []string{"https://dash.growgent.test"}, "https://dash.growgent.test", http.MethodGet, "https://dash.growgent.test", true, http.StatusOK},
		{"unlisted origin", []string{"https://dash.growgent.test"}, "https://evil.test", http.MethodGet, "", false, http.StatusOK},
		{"preflight", []string{"*"}, "http://localhost:5173", http.MethodOptions, "*", false, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/zones", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			NewCORSMiddleware(tt.allowed)(next).ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if (rec.Header().Get("Vary") == "Origin") != tt.wantVary {
				t.Errorf("Vary = %q", rec.Header().Get("Vary"))
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestResponseCapture_StatusTracking(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: rec, statusCode: http.StatusOK}

	rc.WriteHeader(http.StatusAccepted)
	rc.WriteHeader(http.StatusTeapot)
	if rc.statusCode != http.StatusAccepted {
		t.Errorf("statusCode = %d, want the first WriteHeader", rc.statusCode)
	}
}

type hijackRecorder struct {
	*httptest.ResponseRecorder
	conn net.Conn
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return h.conn, bufio.NewReadWriter(bufio.NewReader(h.conn), bufio.NewWriter(h.conn)), nil
}

func TestResponseCapture_Hijack(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	rc := &responseCapture{ResponseWriter: &hijackRecorder{ResponseRecorder: httptest.NewRecorder(), conn: server}, statusCode: http.StatusOK}
	conn, _, err := rc.Hijack()
	if err != nil {
		t.Fatalf("Hijack: %v", err)
	}
	if conn != server {
		t.Error("expected the underlying connection")
	}
	if rc.statusCode != http.StatusSwitchingProtocols {
		t.Errorf("statusCode = %d, want 101", rc.statusCode)
	}
}

func TestResponseCapture_HijackUnsupported(t *testing.T) {
	rc := &responseCapture{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	if _, _, err := rc.Hijack(); !errors.Is(err, http.ErrNotSupported) {
		t.Errorf("Hijack error = %v, want ErrNotSupported", err)
	}
}
