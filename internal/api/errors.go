// Package api provides the HTTP handlers of the discovery API and its
// standardized error envelope.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/kuchikomi/internal/discovery"
	"github.com/onnwee/kuchikomi/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested route does not exist.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeUpstreamUnavailable indicates a store the request depends on failed.
	ErrCodeUpstreamUnavailable = "upstream_unavailable"

	// ErrCodeRequestCanceled indicates the client went away before a response was ready.
	ErrCodeRequestCanceled = "request_canceled"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
)

// StatusClientClosedRequest is the non-standard status logged when the client
// cancels the request. The client never sees it.
const StatusClientClosedRequest = 499

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response.
//
// The error_code is logged by the logging middleware for 4xx and 5xx
// responses when ctx carries it:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeValidation)
//	api.WriteError(w, ctx, http.StatusBadRequest, api.ErrCodeValidation, "limit must be an integer")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeRequestCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeCode writes an error whose status follows from its code.
func writeCode(w http.ResponseWriter, r *http.Request, code, message string) {
	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}

// WriteServiceError maps an error returned by the discovery service to a
// response. Input errors carry their message to the client; upstream and
// internal failures are logged and reported generically.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *discovery.InputError
	var upstreamErr *discovery.UpstreamError

	switch {
	case errors.As(err, &inputErr):
		writeCode(w, r, ErrCodeValidation, inputErr.Error())
	case errors.As(err, &upstreamErr):
		slog.ErrorContext(r.Context(), "discovery upstream failed",
			"source", upstreamErr.Source,
			"error", upstreamErr.Err,
		)
		writeCode(w, r, ErrCodeUpstreamUnavailable, "A backing service is unavailable, try again later")
	case errors.Is(err, context.Canceled):
		writeCode(w, r, ErrCodeRequestCanceled, "Request canceled")
	default:
		slog.ErrorContext(r.Context(), "discovery request failed", "error", err)
		writeCode(w, r, ErrCodeInternal, "Internal server error")
	}
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// NotFound writes the error envelope for unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeCode(w, r, ErrCodeNotFound, "Route not found")
}
