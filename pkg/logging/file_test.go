package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, FormatText, InfoLevel)

	logger.Info(context.Background(), "download complete", Fields{"asset": "app.js.patch"})

	out := buf.String()
	if !strings.Contains(out, "[INFO]") {
		t.Errorf("output missing level: %s", out)
	}
	if !strings.Contains(out, "download complete") {
		t.Errorf("output missing message: %s", out)
	}
	if !strings.Contains(out, "asset=app.js.patch") {
		t.Errorf("output missing field: %s", out)
	}
}

func TestWriterLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, FormatJSON, DebugLevel)

	logger.Error(context.Background(), "hash mismatch", errors.New("boom"), Fields{"file": "app.js"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
	if entry["message"] != "hash mismatch" {
		t.Errorf("message = %v, want hash mismatch", entry["message"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
	if entry["file"] != "app.js" {
		t.Errorf("file = %v, want app.js", entry["file"])
	}
}

func TestWriterLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, FormatText, WarnLevel)

	logger.Debug(context.Background(), "ignored", nil)
	logger.Info(context.Background(), "also ignored", nil)
	logger.Warn(context.Background(), "kept", nil)

	out := buf.String()
	if strings.Contains(out, "ignored") {
		t.Errorf("low-level messages should be filtered: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, FormatText, InfoLevel)

	scoped := logger.WithFields(Fields{"session": "abc123"})
	scoped.Info(context.Background(), "checking", nil)

	if !strings.Contains(buf.String(), "session=abc123") {
		t.Errorf("scoped field missing: %s", buf.String())
	}
}

func TestNewFileLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "engine.log")

	logger, err := NewFileLogger(logPath, FormatText, InfoLevel)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	logger.Info(context.Background(), "install verified", nil)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "install verified") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestOrNull(t *testing.T) {
	if _, ok := OrNull(nil).(*NullLogger); !ok {
		t.Error("OrNull(nil) should return a NullLogger")
	}

	real := NewWriterLogger(&bytes.Buffer{}, FormatText, InfoLevel)
	if OrNull(real) != Logger(real) {
		t.Error("OrNull should pass through a non-nil logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %d, want %d", tt.in, got, tt.expected)
		}
	}
}
