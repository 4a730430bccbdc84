package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := Load("", filepath.Join(t.TempDir(), "config.yaml"))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Anki.URL != "http://127.0.0.1:8765" {
			t.Errorf("Anki.URL = %q, want default", cfg.Anki.URL)
		}
		if cfg.LLM.Retries != 3 {
			t.Errorf("LLM.Retries = %d, want 3", cfg.LLM.Retries)
		}
		if !cfg.Run.SaveProgress {
			t.Error("Run.SaveProgress should default to true")
		}
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
llm:
  default_model: qwen3:8b
  retries: 1
  retry_delay: 2s
run:
  dry_run: true
`)
		cfg, err := Load(path, "")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.LLM.DefaultModel != "qwen3:8b" {
			t.Errorf("DefaultModel = %q, want qwen3:8b", cfg.LLM.DefaultModel)
		}
		if cfg.LLM.RetryDelay != 2*time.Second {
			t.Errorf("RetryDelay = %v, want 2s", cfg.LLM.RetryDelay)
		}
		if !cfg.Run.DryRun {
			t.Error("Run.DryRun should be true")
		}
		// Untouched sections keep defaults.
		if cfg.LLM.Timeout != 180*time.Second {
			t.Errorf("LLM.Timeout = %v, want 180s default", cfg.LLM.Timeout)
		}
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		path := writeConfig(t, `
llm:
  retries: -1
`)
		if _, err := Load(path, ""); err == nil {
			t.Error("expected validation error for negative retries")
		}
	})
}

func TestModelFor(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("task override wins", func(t *testing.T) {
		cfg.LLM.DefaultModel = "fallback"
		model, err := cfg.ModelFor("task-model")
		if err != nil || model != "task-model" {
			t.Errorf("ModelFor = %q, %v; want task-model", model, err)
		}
	})

	t.Run("default used when task has none", func(t *testing.T) {
		cfg.LLM.DefaultModel = "fallback"
		model, err := cfg.ModelFor("")
		if err != nil || model != "fallback" {
			t.Errorf("ModelFor = %q, %v; want fallback", model, err)
		}
	})

	t.Run("neither configured is an error", func(t *testing.T) {
		cfg.LLM.DefaultModel = ""
		if _, err := cfg.ModelFor(""); err == nil {
			t.Error("expected error when no model is configured")
		}
	})
}
