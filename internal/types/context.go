package types

import "context"

// contextKey is unexported so request-scoped values cannot collide with keys
// set by other packages.
type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID attaches the correlation ID the request middleware assigned.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request's correlation ID, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
