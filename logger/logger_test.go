package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newPlain(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	h := NewCustomHandler(buf, &slog.HandlerOptions{Level: level})
	h.color = false
	return slog.New(h)
}

func TestHandlerFormatsAttrs(t *testing.T) {
	var buf bytes.Buffer
	lg := newPlain(&buf, slog.LevelDebug)

	lg.With("display", "HDMI-A-1").WithGroup("fade").Info("tick", "alpha", 0.5)

	line := strings.TrimSpace(buf.String())
	for _, want := range []string{"INFO tick", "display=HDMI-A-1", "fade.alpha=0.5"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	lg := newPlain(&buf, slog.LevelInfo)

	lg.Debug("hidden")
	lg.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "WARN shown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSetLogLevel(t *testing.T) {
	h := Slog.Handler().(*CustomHandler)
	prev := h.level.Level()
	defer h.level.Set(prev)

	SetLogLevel("debug")
	if h.level.Level() != slog.LevelDebug {
		t.Fatalf("level = %v, want debug", h.level.Level())
	}
	SetLogLevel("nonsense")
	if h.level.Level() != slog.LevelDebug {
		t.Fatal("invalid level changed the logger")
	}
}
