package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("warn", &buf)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("visible", "run_id", "run-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug and info lines to be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "run_id=run-1") {
		t.Fatalf("expected warn line with attributes, got %q", out)
	}
}
