package services_test

import (
	"context"
	"testing"

	"tailor/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithAsset(ctx, "clip.mov")
	ctx = services.WithOperation(ctx, "speed")
	ctx = services.WithRequestID(ctx, "req-123")

	if asset, ok := services.AssetFromContext(ctx); !ok || asset != "clip.mov" {
		t.Fatalf("unexpected asset: %v %v", asset, ok)
	}
	if op, ok := services.OperationFromContext(ctx); !ok || op != "speed" {
		t.Fatalf("unexpected operation: %v %v", op, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithAsset(ctx, "")
	ctx = services.WithOperation(ctx, "")
	if _, ok := services.AssetFromContext(ctx); ok {
		t.Fatal("expected no asset value")
	}
	if _, ok := services.OperationFromContext(ctx); ok {
		t.Fatal("expected no operation value")
	}
}
