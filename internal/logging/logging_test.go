package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := parseLevel(c.in); got != c.want {
			t.Errorf("parseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestComponentFiltering(t *testing.T) {
	if err := Initialize(Config{Level: "debug", Components: []string{"session"}}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() {
		// Reset to the allow-all default for other tests.
		_ = Initialize(Config{Level: "info"})
	}()

	if !isComponentAllowed("session") {
		t.Error("session component should be allowed")
	}
	if isComponentAllowed("transport") {
		t.Error("transport component should be filtered out")
	}

	// A filtered component logger must not panic, just discard.
	Transport().Info("discarded")
	Session().Info("kept")
}

func TestWithRun(t *testing.T) {
	if WithRun(nil, "r1") != nil {
		t.Error("WithRun(nil) should return nil")
	}
	if WithRun(Get(), "r1") == nil {
		t.Error("WithRun with a base logger should not return nil")
	}
}
