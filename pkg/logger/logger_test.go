package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_BasicLevels(t *testing.T) {
	l := New("debug")
	if l == nil {
		t.Fatalf("logger nil")
	}
	l.Debug("dbg", "k", 1)
	l.Info("info")
	l.Warn("warn")
	l.Error("err")
}

func TestLogger_RotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashbridge.log")
	l := NewWithFile("info", &FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 1})
	l.Info("written to file", "panel", "cpu")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(b) == 0 {
		t.Fatalf("expected log output in %s", path)
	}
}

func TestLogger_Nop(t *testing.T) {
	l := NewNop()
	l.Info("discarded")
	zl, ok := l.(*zapLogger)
	if !ok || zl.ZapLogger() == nil {
		t.Fatalf("expected zap-backed nop logger")
	}
}

func TestLogger_Mock(t *testing.T) {
	var out strings.Builder
	l := NewMockLogger(&out)
	l.Warn("panel skipped", "type", "row")

	line := out.String()
	if !strings.Contains(line, `"level":"warn"`) || !strings.Contains(line, `"type":"row"`) {
		t.Fatalf("unexpected log line %q", line)
	}
}
