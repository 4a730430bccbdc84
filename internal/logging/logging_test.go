package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRunLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, closeLog, err := NewRunLogger(dir, "run-abc")
	if err != nil {
		t.Fatalf("NewRunLogger failed: %v", err)
	}

	logger.Info("hello", "note_id", 42)
	if err := closeLog(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one log file, got %v (err=%v)", entries, err)
	}
	if !strings.HasPrefix(entries[0].Name(), "run_") {
		t.Errorf("unexpected log file name %s", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "hello") || !strings.Contains(content, "run_id=run-abc") {
		t.Errorf("log file missing expected content:\n%s", content)
	}
}
