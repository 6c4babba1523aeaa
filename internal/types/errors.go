package types

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
)

// ErrorCode identifies an error class. Its prefix selects the HTTP status.
type ErrorCode string

const (
	// Validation (400)
	ErrCodeValidationInvalidJSON     ErrorCode = "validation_invalid_json"
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidField    ErrorCode = "validation_invalid_field"
	ErrCodeValidationZoneType        ErrorCode = "validation_invalid_zone_type"
	ErrCodeValidationRiskLevel       ErrorCode = "validation_invalid_risk_level"
	ErrCodeValidationGeometry        ErrorCode = "validation_invalid_geometry"
	ErrCodeValidationConfirmation    ErrorCode = "validation_confirmation_required"
	ErrCodeValidationUnknownLayer    ErrorCode = "validation_unknown_layer"
	ErrCodeValidationUnknownEvent    ErrorCode = "validation_unknown_event"
	ErrCodeValidationNotEnoughPoints ErrorCode = "validation_not_enough_points"

	// Limits (429)
	ErrCodeRateLimit ErrorCode = "rate_limit_exceeded"

	// Not Found (404)
	ErrCodeNotFoundZone           ErrorCode = "not_found_zone"
	ErrCodeNotFoundField          ErrorCode = "not_found_field"
	ErrCodeNotFoundRecommendation ErrorCode = "not_found_recommendation"
	ErrCodeNotFoundAlert          ErrorCode = "not_found_alert"

	// Conflict (409)
	ErrCodeConflictDuplicateID ErrorCode = "conflict_duplicate_id"

	// Internal/Upstream (500/502/504)
	ErrCodeInternalDB             ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected     ErrorCode = "internal_unexpected_error"
	ErrCodeInternalMapEngine      ErrorCode = "internal_map_engine_error"
	ErrCodeUpstreamUnavailable    ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited    ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamBackendOffline ErrorCode = "upstream_backend_offline"
	ErrCodeUpstreamBackendError   ErrorCode = "upstream_backend_error"
	ErrCodeUpstreamTimeout        ErrorCode = "upstream_timeout"
)

// HTTPStatus maps c to a status; unknown codes are 500.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case c == ErrCodeRateLimit, c == ErrCodeUpstreamRateLimited:
		return http.StatusTooManyRequests
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case c == ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case c == ErrCodeUpstreamBackendOffline:
		return http.StatusServiceUnavailable
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError carries a machine-readable code, a client-safe message and an
// optional cause that never reaches the client.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus is the status of the error's code.
func (e *AppError) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithDetails returns a copy with details merged over the existing ones.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	cp := *e
	cp.Details = merged
	return &cp
}

// NewAppError creates an AppError wrapping err, which may be nil.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewAppErrorWithDetails creates an AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{Code: code, Message: message, Err: err, Details: details}
}

// IsCode reports whether any AppError in err's chain has code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
