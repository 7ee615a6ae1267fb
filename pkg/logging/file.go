package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Format represents the log output format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// WriterLogger implements Logger over any io.Writer. NewFileLogger wraps
// it for file output; the CLI uses it directly for stderr logging.
type WriterLogger struct {
	writer io.Writer
	closer io.Closer
	format Format
	level  Level
	mu     *sync.Mutex
	fields Fields
}

// NewWriterLogger creates a logger writing to w
func NewWriterLogger(w io.Writer, format Format, level Level) *WriterLogger {
	return &WriterLogger{
		writer: w,
		format: format,
		level:  level,
		mu:     &sync.Mutex{},
	}
}

// NewFileLogger creates a logger appending to the file at path,
// creating parent directories as needed
func NewFileLogger(path string, format Format, level Level) (*WriterLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := NewWriterLogger(file, format, level)
	logger.closer = file
	return logger, nil
}

// Debug logs a debug message
func (l *WriterLogger) Debug(ctx context.Context, msg string, fields Fields) {
	if l.level <= DebugLevel {
		l.log(DebugLevel, msg, nil, fields)
	}
}

// Info logs an info message
func (l *WriterLogger) Info(ctx context.Context, msg string, fields Fields) {
	if l.level <= InfoLevel {
		l.log(InfoLevel, msg, nil, fields)
	}
}

// Warn logs a warning message
func (l *WriterLogger) Warn(ctx context.Context, msg string, fields Fields) {
	if l.level <= WarnLevel {
		l.log(WarnLevel, msg, nil, fields)
	}
}

// Error logs an error message
func (l *WriterLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	if l.level <= ErrorLevel {
		l.log(ErrorLevel, msg, err, fields)
	}
}

// WithFields returns a logger with additional fields
func (l *WriterLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &WriterLogger{
		writer: l.writer,
		closer: l.closer,
		format: l.format,
		level:  l.level,
		mu:     l.mu,
		fields: merged,
	}
}

// Close flushes and closes the logger
func (l *WriterLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// log writes one entry
func (l *WriterLogger) log(level Level, msg string, err error, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()

	allFields := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		allFields[k] = v
	}
	for k, v := range fields {
		allFields[k] = v
	}

	var line []byte
	if l.format == FormatJSON {
		line = l.formatJSON(level, msg, err, allFields)
	} else {
		line = l.formatText(level, msg, err, allFields)
	}
	if line == nil {
		return
	}

	l.writer.Write(line)
}

// formatJSON formats a log entry as one JSON line
func (l *WriterLogger) formatJSON(level Level, msg string, err error, fields Fields) []byte {
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     levelString(level),
		"message":   msg,
	}
	if err != nil {
		entry["error"] = err.Error()
	}
	for k, v := range fields {
		entry[k] = v
	}

	data, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		return nil
	}
	return append(data, '\n')
}

// formatText formats a log entry as plain text
func (l *WriterLogger) formatText(level Level, msg string, err error, fields Fields) []byte {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	line := fmt.Sprintf("%s [%s] %s", timestamp, levelString(level), msg)

	if err != nil {
		line += fmt.Sprintf(" error=%q", err.Error())
	}
	for k, v := range fields {
		line += fmt.Sprintf(" %s=%v", k, v)
	}

	return []byte(line + "\n")
}
