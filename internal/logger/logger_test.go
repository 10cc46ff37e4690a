package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func reset() {
	SetVerbose(false)
	SetOutput(os.Stderr)
	_ = Close()
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false after SetVerbose(false)")
	}
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") {
		t.Errorf("expected debug level in output: %q", out)
	}
	if !strings.Contains(out, `msg="test message arg"`) {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("test message")
	Info("info message")
	Section("quiet")

	if buf.Len() > 0 {
		t.Errorf("expected no output when verbose is disabled, got %q", buf.String())
	}
}

func TestSection(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Drain")

	if !strings.Contains(buf.String(), "=== Drain ===") {
		t.Errorf("unexpected section output: %q", buf.String())
	}
}

func TestInfo(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Info("info message %d", 42)

	out := buf.String()
	if !strings.Contains(out, "level=INFO") || !strings.Contains(out, `msg="info message 42"`) {
		t.Errorf("unexpected info output: %q", out)
	}
}

func TestWarnAndError_AlwaysWritten(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Warn("warning message")
	Error("error %s", "message")

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `msg="warning message"`) {
		t.Errorf("unexpected warn output: %q", out)
	}
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, `msg="error message"`) {
		t.Errorf("unexpected error output: %q", out)
	}
}

func TestConfigureFile(t *testing.T) {
	defer reset()

	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "mahalsync.log")

	var buf bytes.Buffer
	SetOutput(&buf)
	if err := ConfigureFile(path, 1, 1); err != nil {
		t.Fatalf("ConfigureFile: %v", err)
	}

	Warn("mirrored %s", "line")
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "mirrored line") {
		t.Errorf("log file missing message: %q", string(data))
	}
	if !strings.Contains(buf.String(), "mirrored line") {
		t.Errorf("console missing message: %q", buf.String())
	}
}
