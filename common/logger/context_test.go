package logger

import (
	"context"
	"testing"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := GetTraceID(ctx); got != "" {
		t.Fatalf("empty context trace id = %q, want empty", got)
	}
	ctx = WithTraceID(ctx, "req-abc-123")
	if got := GetTraceID(ctx); got != "req-abc-123" {
		t.Fatalf("trace id = %q, want req-abc-123", got)
	}
	if got := GetTraceID(nil); got != "" {
		t.Fatalf("nil context trace id = %q, want empty", got)
	}
}
