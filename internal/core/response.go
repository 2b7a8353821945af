package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"epigrid/internal/types"
)

// Request bodies larger than this are rejected before decoding. Aggregate
// pushes and record submissions are both far under 1 MB.
const maxBodyBytes = 1 << 20

// APIErrorResponse is the envelope every error response uses. Success
// responses carry their domain payload directly, so the node and aggregator
// wire shapes stay exactly what clients expect.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the client-visible part of a failure: a stable machine code,
// a human message, optional per-field details, and the request ID for
// correlating with server logs.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON marshals data and writes it with the given status. A value that fails
// to marshal turns into a 500 envelope instead; the write itself is best
// effort at that point.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(APIErrorResponse{Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "failed to marshal response",
			RequestID: types.GetRequestID(r.Context()),
		}})
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error translates err into an HTTP error response. AppErrors, wrapped or
// not, keep their code, message, and details, with the status derived from
// the code prefix. Anything else becomes an opaque 500: raw error text from
// lower layers never reaches a client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	detail := ErrorDetail{
		Code:      string(types.ErrCodeInternalUnexpected),
		Message:   "an unexpected error occurred",
		RequestID: types.GetRequestID(r.Context()),
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus()
		detail.Code = string(appErr.Code)
		detail.Message = appErr.Message
		detail.Details = appErr.Details
	}

	JSON(w, r, status, APIErrorResponse{Error: detail})
}

// DecodeJSON decodes the request body into dst under the chassis's payload
// rules: at most 1 MB, unknown fields rejected, exactly one JSON value.
// Failures come back as validation_malformed_payload AppErrors describing
// what was wrong, never as raw decoder errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return types.NewAppError(
			types.ErrCodeValidationPayload,
			"request body must contain a single JSON object",
			nil,
		)
	}
	return nil
}

// decodeError turns a json.Decoder failure into the malformed-payload
// AppError the handlers surface.
func decodeError(err error) *types.AppError {
	var (
		maxBytesErr *http.MaxBytesError
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &maxBytesErr):
		return types.NewAppError(types.ErrCodeValidationPayload,
			"request body must not exceed 1MB", err)
	case errors.As(err, &syntaxErr):
		return types.NewAppError(types.ErrCodeValidationPayload,
			"malformed JSON in request body", err)
	case errors.As(err, &typeErr):
		return types.NewAppErrorWithDetails(types.ErrCodeValidationPayload,
			"invalid value for field", err,
			map[string]any{"field": typeErr.Field, "expected": typeErr.Type.String()})
	case errors.Is(err, io.EOF):
		return types.NewAppError(types.ErrCodeValidationPayload,
			"request body must not be empty", err)
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return types.NewAppError(types.ErrCodeValidationPayload,
			"unknown field in request body: "+field, err)
	}

	return types.NewAppError(types.ErrCodeValidationPayload,
		"invalid JSON in request body", err)
}
