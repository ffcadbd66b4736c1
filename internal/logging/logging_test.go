package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetReplacesGlobalLogger(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })

	var buf bytes.Buffer
	l := New("text", slog.LevelInfo, &buf)
	Set(l)
	if L() != l {
		t.Fatalf("L() did not return the installed logger")
	}
	// Nil must not clobber the installed logger.
	Set(nil)
	if L() != l {
		t.Fatalf("Set(nil) replaced the logger")
	}
}

func TestNewHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	New("json", slog.LevelInfo, &buf).Info("proxy_ready", "addr", ":4270")
	if out := buf.String(); !strings.HasPrefix(out, "{") || !strings.Contains(out, `"msg":"proxy_ready"`) {
		t.Fatalf("json output = %q", out)
	}

	buf.Reset()
	New("text", slog.LevelInfo, &buf).Info("proxy_ready")
	if out := buf.String(); strings.HasPrefix(out, "{") || !strings.Contains(out, "proxy_ready") {
		t.Fatalf("text output = %q", out)
	}
}

func TestNewLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New("text", slog.LevelWarn, &buf)
	l.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("info record passed a warn-level handler: %q", buf.String())
	}
	l.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}
