package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestFromContextOr_ReturnsStoredLogger(t *testing.T) {
	stored := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), stored)

	if got := FromContextOr(ctx, zap.NewNop()); got != stored {
		t.Error("expected the context-stored logger")
	}
}

func TestFromContextOr_FallsBack(t *testing.T) {
	fallback := zap.NewExample()

	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Error("expected the fallback logger")
	}
}

func TestFromContextOr_NilFallbackIsSafe(t *testing.T) {
	got := FromContextOr(context.Background(), nil)
	if got == nil {
		t.Fatal("expected a usable logger")
	}
	got.Info("no-op")
}
