package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDirName is the default name for the notesmith home directory.
	DefaultDirName = ".notesmith"

	// TasksDirName is the subdirectory holding task definition files.
	TasksDirName = "tasks"

	// ProgressDirName is the subdirectory holding completion-set files.
	ProgressDirName = "progress"

	// LogsDirName is the subdirectory holding per-run log files.
	LogsDirName = "logs"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the notesmith home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.notesmith).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// TasksPath returns the path to the tasks directory.
func (d *Dir) TasksPath() string {
	return filepath.Join(d.path, TasksDirName)
}

// TaskPath returns the path to a named task file.
func (d *Dir) TaskPath(name string) string {
	return filepath.Join(d.TasksPath(), name+".yaml")
}

// ProgressPath returns the path to the completion-set file for a deck.
// Deck names are sanitized so nested decks map to a flat file name.
func (d *Dir) ProgressPath(deck string) string {
	sanitized := strings.ReplaceAll(deck, "::", "_")
	sanitized = strings.ReplaceAll(sanitized, " ", "_")
	sanitized = strings.ReplaceAll(sanitized, string(os.PathSeparator), "_")
	return filepath.Join(d.path, ProgressDirName, sanitized+"_progress.json")
}

// LogsPath returns the path to the logs directory.
func (d *Dir) LogsPath() string {
	return filepath.Join(d.path, LogsDirName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.TasksPath(), filepath.Join(d.path, ProgressDirName), d.LogsPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
