package plog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetOutputCapturesLogs(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(slog.LevelInfo)

	Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "hello") {
		t.Errorf("expected output to contain message, got: %q", out)
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("expected output to contain attribute, got: %q", out)
	}
}

func TestSetLevelSuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	SetLevel(slog.LevelInfo)
	Debug("invisible")
	if strings.Contains(buf.String(), "invisible") {
		t.Errorf("debug message should be suppressed at info level, got: %q", buf.String())
	}

	SetLevel(slog.LevelDebug)
	Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug message should be written at debug level, got: %q", buf.String())
	}
}

func TestLevelFromString(t *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range testCases {
		if got := LevelFromString(tc.input); got != tc.expected {
			t.Errorf("LevelFromString(%q) = %v; want %v", tc.input, got, tc.expected)
		}
	}
}
