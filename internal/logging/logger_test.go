package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		l, err := NewLogger(lvl)
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", lvl, err)
		}
		if !l.Core().Enabled(mustLevel(t, lvl)) {
			t.Errorf("level %s not enabled", lvl)
		}
	}
	if _, err := NewLogger("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func mustLevel(t *testing.T, s string) zapcore.Level {
	t.Helper()
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		t.Fatal(err)
	}
	return lvl
}
