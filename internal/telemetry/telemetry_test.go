package telemetry

import (
	"context"
	"testing"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "solmate-test", "0.0.0", "")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestStartSpan_NoopHasNoTraceID(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()

	AddRequestAttributes(span, "tps", "GET", "req-1")
	AddStatusAttribute(span, 200)

	if id := GetTraceID(ctx); id != "" {
		t.Errorf("GetTraceID() = %q, want empty with the no-op provider", id)
	}
}
