package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerLevels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
	}{
		{name: "debug enables debug output", level: "debug", debugEnabled: true},
		{name: "warn hides debug output", level: "warn", debugEnabled: false},
		{name: "blank level falls back to info", level: "", debugEnabled: false},
		{name: "level is trimmed and lowercased", level: "  DEBUG ", debugEnabled: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tc.level)
			if err != nil {
				t.Fatalf("NewLogger(%q) returned error: %v", tc.level, err)
			}
			if logger == nil {
				t.Fatalf("NewLogger(%q) returned nil logger", tc.level)
			}

			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debugEnabled {
				t.Fatalf("debug enabled=%v, want=%v", got, tc.debugEnabled)
			}
		})
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("loud")
	if err == nil {
		t.Fatal("expected error for unknown level")
	}
	if logger != nil {
		t.Fatal("expected nil logger when the level does not parse")
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithCorrelationID(context.Background(), "ord-corr-42")
	correlationID, ok := CorrelationIDFromContext(ctx)
	if !ok {
		t.Fatal("expected correlation id on the context")
	}
	if correlationID != "ord-corr-42" {
		t.Fatalf("correlation id=%q, want=%q", correlationID, "ord-corr-42")
	}
}

func TestCorrelationIDAbsent(t *testing.T) {
	t.Parallel()

	if _, ok := CorrelationIDFromContext(context.Background()); ok {
		t.Fatal("expected no correlation id on a bare context")
	}
}

func TestWithContextLoggerAnnotatesEntries(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	ctx := WithCorrelationID(context.Background(), "ord-corr-42")
	WithContextLogger(baseLogger, ctx).Info("order forwarded")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}

	if got := entries[0].ContextMap()["correlationId"]; got != "ord-corr-42" {
		t.Fatalf("correlationId=%v, want=%q", got, "ord-corr-42")
	}
}

func TestWithContextLoggerWithoutCorrelationID(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	WithContextLogger(baseLogger, context.Background()).Info("scanner tick")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}

	if _, ok := entries[0].ContextMap()["correlationId"]; ok {
		t.Fatal("expected no correlationId field without a correlation id")
	}
}

func TestWithContextLoggerNilLogger(t *testing.T) {
	t.Parallel()

	if got := WithContextLogger(nil, context.Background()); got != nil {
		t.Fatal("expected nil logger back")
	}
}
