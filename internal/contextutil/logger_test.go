package contextutil

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerRoundTrip(t *testing.T) {
	logger := slog.Default().With("component", "test")

	ctx := WithLogger(context.Background(), logger)
	if got := LoggerFromContext(ctx); got != logger {
		t.Error("LoggerFromContext() did not return the stored logger")
	}
}

func TestLoggerFromContext_Fallback(t *testing.T) {
	if got := LoggerFromContext(context.Background()); got != slog.Default() {
		t.Error("LoggerFromContext() without a stored logger should fall back to the default")
	}
}
