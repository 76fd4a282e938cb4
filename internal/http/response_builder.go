// Package http serves the JSON API.
//
// This file implements the builder used by every handler to write JSON
// bodies and to map domain errors onto status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"conti/internal/core"
	"conti/internal/log"
	"conti/internal/middleware/trace"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. 204 responses never carry a body.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.statusCode == http.StatusNoContent || b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorBody is the payload of every non-2xx response.
type ErrorBody struct {
	Error     string          `json:"error"`
	RequestID string          `json:"request_id,omitempty"`
	Details   []core.RowError `json:"details,omitempty"`
}

// ErrorResponse creates an error response tagged with the request ID.
func ErrorResponse(ctx context.Context, statusCode int, message string, details []core.RowError) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: message, RequestID: trace.GetRequestID(ctx), Details: details})
}

func InternalServerError(ctx context.Context) *JSONResponseBuilder {
	return ErrorResponse(ctx, http.StatusInternalServerError, "internal server error", nil)
}

// statusFor maps an error onto its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMalformedRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalid), errors.Is(err, core.ErrRateNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrRejected):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes its mapped response. Internal failures
// never leak their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := statusFor(err)

	if status >= http.StatusInternalServerError {
		log.FromContext(ctx).Fail(ctx, "Request failed", err,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		if status == http.StatusInternalServerError {
			InternalServerError(ctx).Write(w)
			return
		}
		ErrorResponse(ctx, status, "request cancelled", nil).Write(w)
		return
	}

	var details []core.RowError
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		details = ve.Rows
	}
	ErrorResponse(ctx, status, err.Error(), details).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}
