package core

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"growgent/internal/types"
)

// Fallback budget used when the config does not set one.
const (
	defaultRateLimitMax    = 600
	defaultRateLimitWindow = time.Minute
)

// ClientIPMiddleware resolves the caller address and stores it in the context.
// The first X-Forwarded-For hop wins, then X-Real-IP, then RemoteAddr.
func ClientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := types.WithClientIP(r.Context(), clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit enforces a per-client-address request budget through the
// RateLimitStore.
//
// If no RateLimitStore is configured (e.g., during tests), or the configured
// limit is zero, the middleware passes through without rate limiting.
//
// On every request (allowed or not), the middleware sets standard rate limit
// response headers:
//   - X-RateLimit-Limit: The maximum number of requests in the window.
//   - X-RateLimit-Remaining: The number of requests remaining.
//   - X-RateLimit-Reset: Unix timestamp when the window resets.
//
// When rate limited, the middleware also sets:
//   - Retry-After: Seconds until the rate limit window resets.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	limit, window := s.rateLimitBudget()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.RateLimitStore == nil || limit == 0 {
			next.ServeHTTP(w, r)
			return
		}

		key, ok := types.GetClientIP(r.Context())
		if !ok {
			key = clientIP(r)
		}

		result, err := s.RateLimitStore.IncrementAndCheck(r.Context(), key, limit, window)
		if err != nil {
			// Fail open so a store outage does not block all traffic.
			s.Logger.Error("rate limit store error",
				slog.String("client_ip", key),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, limit, result)

		if !result.Allowed {
			s.Logger.Warn("rate limit exceeded",
				slog.String("client_ip", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			Error(w, r, types.NewAppError(
				types.ErrCodeRateLimit,
				"Rate limit exceeded. Please retry after the reset time.",
				nil,
			))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitBudget() (int, time.Duration) {
	if s.Config == nil {
		return defaultRateLimitMax, defaultRateLimitWindow
	}
	window := s.Config.Server.RateLimitWindow
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return s.Config.Server.RateLimit, window
}

// setRateLimitHeaders writes the standard X-RateLimit-* headers to the response.
func setRateLimitHeaders(w http.ResponseWriter, limit int, result RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
