package types

import (
	"context"
	"testing"
)

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "3f2a9c")
	if got := GetRequestID(ctx); got != "3f2a9c" {
		t.Errorf("GetRequestID = %q, want 3f2a9c", got)
	}
}

func TestRequestID_AbsentIsEmpty(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on bare context = %q, want empty", got)
	}
}

func TestRequestID_TypedKeyDefeatsStringCollision(t *testing.T) {
	// A plain string key must not reach the value stored under the
	// unexported contextKey type.
	ctx := context.WithValue(context.Background(), "request_id", "spoofed")
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID = %q, want empty for mismatched key type", got)
	}
}
