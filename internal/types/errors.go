package types

import (
	"fmt"
	"maps"
	"net/http"
	"strings"
)

// ErrorCode classifies an application error. The code's prefix picks the
// HTTP status, so a new code slots into the right family by naming alone.
type ErrorCode string

// Error codes used across both servers. Handlers and domain packages use
// these constants, never ad hoc strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidLat     ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon     ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationSeverityRange  ErrorCode = "validation_severity_out_of_range"
	ErrCodeValidationSymptomsEmpty  ErrorCode = "validation_symptoms_empty"
	ErrCodeValidationInvalidMetric  ErrorCode = "validation_invalid_metric"
	ErrCodeValidationInvalidHorizon ErrorCode = "validation_invalid_horizon"
	ErrCodeValidationInvalidWindow  ErrorCode = "validation_invalid_window"
	ErrCodeValidationInvalidHash    ErrorCode = "validation_invalid_data_hash"
	ErrCodeValidationMissingField   ErrorCode = "validation_missing_required_field"
	ErrCodeValidationPayload        ErrorCode = "validation_malformed_payload"
	ErrCodeValidationInvalidTime    ErrorCode = "validation_invalid_timestamp"

	// Limits (429)
	ErrCodeRateLimit ErrorCode = "rate_limit_exceeded"

	// Not Found (404)
	ErrCodeNotFoundRoute ErrorCode = "not_found_route"

	// Delivery (502). These classify push failures on the node's background
	// path for logs and counters; they are never surfaced to the caller who
	// submitted the record.
	ErrCodeDeliveryPushFailed  ErrorCode = "delivery_push_failed"
	ErrCodeDeliveryTimeout     ErrorCode = "delivery_timeout"
	ErrCodeDeliveryCircuitOpen ErrorCode = "delivery_circuit_open"
	ErrCodeDeliveryQueueFull   ErrorCode = "delivery_queue_full"

	// Internal (500)
	ErrCodeInternalStore      ErrorCode = "internal_store_error"
	ErrCodeInternalSeries     ErrorCode = "internal_series_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps the code to its response status. Unrecognized codes fall
// through to 500 alongside the internal_ family.
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case strings.HasPrefix(string(c), "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(string(c), "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(string(c), "delivery_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError carries a stable code, a client-safe message, optional structured
// details, and the wrapped cause. Every error the handlers surface flows
// through it.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus is shorthand for e.Code.HTTPStatus().
func (e *AppError) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithDetails returns a copy with details merged over the existing ones.
// The receiver is left untouched.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	return &AppError{Code: e.Code, Message: e.Message, Err: e.Err, Details: merged}
}

// NewAppError builds an AppError wrapping err, which may be nil.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewAppErrorWithDetails builds an AppError carrying structured details for
// the client.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{Code: code, Message: message, Err: err, Details: details}
}
