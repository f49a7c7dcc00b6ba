package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestCronBridgeLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewCron(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	l.Info("skip", "job", "coindesk")
	if buf.Len() != 0 {
		t.Fatalf("info messages should be demoted to debug, got %q", buf.String())
	}

	l.Error(errors.New("boom"), "panic", "job", "vietstock")
	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "error=boom") || !strings.Contains(out, "job=vietstock") {
		t.Fatalf("unexpected output: %q", out)
	}
}
