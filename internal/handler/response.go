package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "Post not found"}
//
// Validation errors may add the offending field, and outside production a
// 500 carries the full error chain in "detail" to make local debugging easy.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sakif/codeshare/internal/apperror"
	"github.com/sakif/codeshare/internal/captcha"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Input field at fault, for validation errors
	Detail  string `json:"detail,omitempty"`
}

// MessageResponse is the body of endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be set BEFORE the body is written; once Encode
// starts writing, header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// The headers are already sent; all we can do is log it.
			log.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// Responder maps domain errors to HTTP responses.
// Every handler holds one so that failures are logged and shaped the same way.
type Responder struct {
	logger zerolog.Logger
	detail bool
}

// NewResponder returns a Responder. With detail set, 500 responses include
// the error text; never enable it in production.
func NewResponder(logger zerolog.Logger, detail bool) *Responder {
	return &Responder{logger: logger, detail: detail}
}

// statusFor maps an apperror sentinel to its HTTP status and error type.
// The service layer never sees status codes; this switch is the only place
// where a domain error becomes one.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// Error writes err as a JSON error response.
//
// errors.As walks the wrap chain, so an *AppError wrapped by
// fmt.Errorf("...: %w", err) is still found and its message used.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, kind := statusFor(appErr)
		if status >= http.StatusInternalServerError {
			rs.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		}
		writeJSON(w, status, ErrorResponse{
			Error:   kind,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// Unknown error: a generic 500. Raw error text may contain SQL or file
	// paths, so it is only exposed when detail is on.
	rs.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")

	resp := ErrorResponse{Error: "internal_error", Message: "An internal error occurred"}
	if errors.Is(err, captcha.ErrNotConfigured) {
		resp.Message = "Server configuration error"
	}
	if rs.detail {
		resp.Detail = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}
