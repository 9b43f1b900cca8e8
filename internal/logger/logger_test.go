package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	tests := []struct {
		name   string
		log    func(msg string, args ...any)
		expect string
	}{
		{name: "debug", log: l.Debug, expect: "level=DEBUG"},
		{name: "info", log: l.Info, expect: "level=INFO"},
		{name: "warn", log: l.Warn, expect: "level=WARN"},
		{name: "error", log: l.Error, expect: "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log("message", "service", "test")

			if !strings.Contains(buf.String(), tt.expect) {
				t.Fatalf("expected %s in %q", tt.expect, buf.String())
			}

			if !strings.Contains(buf.String(), "service=test") {
				t.Fatalf("expected service=test in %q", buf.String())
			}
		})
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil))).With("device", "abc")

	l.Info("hello")

	if !strings.Contains(buf.String(), "device=abc") {
		t.Fatalf("expected device=abc in %q", buf.String())
	}
}
