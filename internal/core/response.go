package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"growgent/internal/types"
)

const maxRequestBodySize = 1 << 20

// APIResponse is the standard envelope for all successful API responses.
type APIResponse struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta carries list totals and non-blocking notices such as "backend offline".
type Meta struct {
	Total    *int     `json:"total,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// APIErrorResponse is the standard envelope for all error API responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned to clients.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON marshals data and writes it with status. A marshal failure becomes a
// 500 envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fallback := APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(types.ErrCodeInternalUnexpected),
				Message:   "failed to marshal response",
				RequestID: types.GetRequestID(r.Context()),
			},
		}
		_ = json.NewEncoder(w).Encode(fallback)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Respond writes data inside the standard APIResponse envelope.
func Respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	JSON(w, r, status, APIResponse{Data: data})
}

// RespondWithMeta writes data and meta inside the standard envelope.
func RespondWithMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta *Meta) {
	JSON(w, r, status, APIResponse{Data: data, Meta: meta})
}

// Error writes the error envelope. An *types.AppError anywhere in the chain
// supplies code, status, message and details; anything else is reported as
// internal_unexpected_error with a fixed message. Wrapped causes never reach
// the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := types.GetRequestID(r.Context())

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus()
		resp := APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(appErr.Code),
				Message:   appErr.Message,
				Details:   appErr.Details,
				RequestID: requestID,
			},
		}
		JSON(w, r, status, resp)
		return
	}

	resp := APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		},
	}
	JSON(w, r, http.StatusInternalServerError, resp)
}

// DecodeJSON decodes exactly one JSON value from a body of at most 1 MB into
// dst, rejecting unknown fields. Every failure is a validation_invalid_json
// AppError; the caller writes the response.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return invalidJSON("request body must contain a single JSON object", nil)
	}
	return nil
}

func invalidJSON(msg string, err error) *types.AppError {
	return types.NewAppError(types.ErrCodeValidationInvalidJSON, msg, err)
}

func decodeError(err error) *types.AppError {
	var (
		tooLarge *http.MaxBytesError
		syntax   *json.SyntaxError
		typeErr  *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		return invalidJSON("request body must not exceed 1MB", err)
	case errors.As(err, &syntax):
		return invalidJSON("malformed JSON in request body", err)
	case errors.As(err, &typeErr):
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON, "invalid value for field", err,
			map[string]any{"field": typeErr.Field, "expected": typeErr.Type.String()})
	case errors.Is(err, io.EOF):
		return invalidJSON("request body must not be empty", err)
	}

	// DisallowUnknownFields has no typed error.
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return invalidJSON("unknown field in request body: "+name, err)
	}
	return invalidJSON("invalid JSON in request body", err)
}
