package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		in   LogLevel
		want zapcore.Level
	}{
		{DebugLevel, zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{ErrorLevel, zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		if got := tt.in.zapLevel(); got != tt.want {
			t.Errorf("level %q: expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestHelpersWriteToGlobalLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	Info("[Upload] stored", String("title", "Song"), Int64("trackId", 7))
	Error("[Delete] failed", ErrorField(errors.New("boom")))

	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}

	first := logs.All()[0]
	if first.Message != "[Upload] stored" {
		t.Errorf("unexpected message %q", first.Message)
	}
	if first.ContextMap()["trackId"] != int64(7) {
		t.Errorf("expected trackId field, got %v", first.ContextMap())
	}
}

func TestHelpersWithoutLogger(t *testing.T) {
	SetLogger(nil)
	// must not panic
	Debug("nothing")
	Warn("nothing")
}
