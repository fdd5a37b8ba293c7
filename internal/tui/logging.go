package tui

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// NewFileLogger opens (or creates) the log file at path and returns a logger writing to it.
// The returned closer releases the file.
func NewFileLogger(path string) (*log.Logger, io.Closer, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("empty log path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return newLogger(f), f, nil
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, "[echomail] ", log.LstdFlags|log.Lmicroseconds)
}

// logf writes to the app logger when one is configured
func (a *App) logf(format string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}
