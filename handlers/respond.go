package handlers

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/config"
	"projectmeasure/measurements"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error  string            `json:"error"`
	Fields validation.Errors `json:"fields,omitempty"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var fields validation.Errors
	switch {
	case errors.As(err, &fields):
		return http.StatusBadRequest
	case errors.Is(err, measurements.ErrDuplicateLineItem),
		errors.Is(err, measurements.ErrMissingRole),
		errors.Is(err, measurements.ErrInvalidFile):
		return http.StatusBadRequest
	case errors.Is(err, measurements.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, measurements.ErrSessionClosed),
		errors.Is(err, measurements.ErrInvalidTransition):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// ErrorJSON writes err as a JSON error response. Unexpected errors are
// logged and replaced by a generic message.
func ErrorJSON(e *core.RequestEvent, op string, err error) error {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var fields validation.Errors
	if errors.As(err, &fields) {
		body.Error = "Validation failed"
		body.Fields = fields
	}
	if status == http.StatusInternalServerError {
		config.LogError(config.GetLogger(), "handlers", op, "request failed", map[string]any{
			"method": e.Request.Method,
			"path":   e.Request.URL.Path,
		}, err)
		body.Error = "Something went wrong. Please try again."
	}
	return e.JSON(status, body)
}

// badRequest rejects a malformed request before it reaches the service.
func badRequest(e *core.RequestEvent, message string) error {
	return e.JSON(http.StatusBadRequest, errorBody{Error: message})
}
