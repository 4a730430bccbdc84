// Package logging sets up the per-run log file. Each run writes a timestamped
// debug-level log under the home logs directory; terminal output stays the
// responsibility of the ui package.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// NewRunLogger opens a log file named run_YYYYMMDD_HHMMSS.log in dir and
// returns a text-handler slog logger writing to it, plus a close func. runID
// is attached to every record for cross-run correlation.
func NewRunLogger(dir, runID string) (*slog.Logger, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("run_%s.log", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(handler).With("run_id", runID)

	return logger, f.Close, nil
}

// Discard returns a logger that drops everything, for tests and for commands
// that don't open a run log.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
