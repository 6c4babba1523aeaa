package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the whole health check. Probes still running at
// the deadline are reported as timed out.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency, such as the zone database or the
// Growgent backend.
type HealthProbe interface {
	Name() string
	// Check must honor the context deadline.
	Check(ctx context.Context) error
}

type funcProbe struct {
	name  string
	check func(ctx context.Context) error
}

func (p funcProbe) Name() string                    { return p.name }
func (p funcProbe) Check(ctx context.Context) error { return p.check(ctx) }

// NewProbe adapts a function into a HealthProbe.
func NewProbe(name string, check func(ctx context.Context) error) HealthProbe {
	return funcProbe{name: name, check: check}
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

type componentStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

type probeOutcome struct {
	name    string
	err     error
	elapsed time.Duration
}

// HandleHealth serves GET /health. Probes run concurrently; the response is
// 200 only when every probe passes within healthCheckTimeout, and 503
// otherwise.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: statusHealthy, Version: s.version()}
	if len(s.HealthProbes) == 0 {
		JSON(w, r, http.StatusOK, resp)
		return
	}

	// Buffered so late probes never block after the handler returns.
	outcomes := make(chan probeOutcome, len(s.HealthProbes))
	for _, p := range s.HealthProbes {
		go func() {
			start := time.Now()
			err := runProbe(ctx, p)
			outcomes <- probeOutcome{name: p.Name(), err: err, elapsed: time.Since(start)}
		}()
	}

	resp.Components = make(map[string]componentStatus, len(s.HealthProbes))
collect:
	for range s.HealthProbes {
		select {
		case o := <-outcomes:
			c := componentStatus{Status: statusHealthy, LatencyMS: o.elapsed.Milliseconds()}
			if o.err != nil {
				c.Status, c.Message = statusUnhealthy, o.err.Error()
			}
			resp.Components[o.name] = c
		case <-ctx.Done():
			break collect
		}
	}
	for _, p := range s.HealthProbes {
		if _, ok := resp.Components[p.Name()]; !ok {
			resp.Components[p.Name()] = componentStatus{
				Status:    statusUnhealthy,
				Message:   "health check timed out",
				LatencyMS: healthCheckTimeout.Milliseconds(),
			}
		}
	}

	status := http.StatusOK
	for _, c := range resp.Components {
		if c.Status != statusHealthy {
			resp.Status = statusUnhealthy
			status = http.StatusServiceUnavailable
			break
		}
	}
	JSON(w, r, status, resp)
}

// runProbe converts a panicking probe into an error.
func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("probe panicked: %v", v)
		}
	}()
	return p.Check(ctx)
}

func (s *Server) version() string {
	if s.Config == nil {
		return ""
	}
	return s.Config.Build.Version
}
