package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_Level(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	logger, err := New("development", "warn")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled at warn level")
	}
}

func TestNew_EnvOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	logger, err := New("production", "debug")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("LOG_LEVEL=error should disable warn")
	}
}

func TestFromContext(t *testing.T) {
	fallback := zap.NewExample()
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Error("FromContext() without logger should return fallback")
	}

	carried := zap.NewExample()
	ctx := WithLogger(context.Background(), carried)
	if got := FromContext(ctx, fallback); got != carried {
		t.Error("FromContext() should return the carried logger")
	}

	if got := FromContext(context.Background(), nil); got == nil {
		t.Error("FromContext() should never return nil")
	}
}
