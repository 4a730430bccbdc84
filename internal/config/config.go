// Package config loads run configuration from the notesmith home directory.
// Configuration is resolved once at startup and is immutable for the length
// of a run.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Anki AnkiConfig `mapstructure:"anki"`
	LLM  LLMConfig  `mapstructure:"llm"`
	Run  RunConfig  `mapstructure:"run"`
}

// AnkiConfig holds AnkiConnect connection settings.
type AnkiConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMConfig holds inference endpoint settings.
type LLMConfig struct {
	URL          string        `mapstructure:"url"`
	DefaultModel string        `mapstructure:"default_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retries      int           `mapstructure:"retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	LogPrompt    bool          `mapstructure:"log_prompt"`
	LogResponse  bool          `mapstructure:"log_response"`
}

// RunConfig holds run-mode settings.
type RunConfig struct {
	DryRun       bool   `mapstructure:"dry_run"`
	SaveProgress bool   `mapstructure:"save_progress"`
	Task         string `mapstructure:"task"`
}

// Load reads configuration from cfgFile (or the default location under the
// home directory) with NOTESMITH_* environment overrides. A missing config
// file is fine; defaults apply.
func Load(cfgFile, defaultPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("anki", map[string]any{
		"url":     defaults.Anki.URL,
		"timeout": defaults.Anki.Timeout,
	})
	v.SetDefault("llm", map[string]any{
		"url":           defaults.LLM.URL,
		"default_model": defaults.LLM.DefaultModel,
		"timeout":       defaults.LLM.Timeout,
		"retries":       defaults.LLM.Retries,
		"retry_delay":   defaults.LLM.RetryDelay,
		"log_prompt":    defaults.LLM.LogPrompt,
		"log_response":  defaults.LLM.LogResponse,
	})
	v.SetDefault("run", map[string]any{
		"dry_run":       defaults.Run.DryRun,
		"save_progress": defaults.Run.SaveProgress,
		"task":          defaults.Run.Task,
	})

	// Environment variables with NOTESMITH_ prefix
	v.SetEnvPrefix("NOTESMITH")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigFile(defaultPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that would otherwise fail mid-run.
func (c *Config) Validate() error {
	var errs []string
	if c.Anki.URL == "" {
		errs = append(errs, "anki.url must be set")
	}
	if c.Anki.Timeout <= 0 {
		errs = append(errs, "anki.timeout must be positive")
	}
	if c.LLM.URL == "" {
		errs = append(errs, "llm.url must be set")
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, "llm.timeout must be positive")
	}
	if c.LLM.Retries < 0 {
		errs = append(errs, "llm.retries cannot be negative")
	}
	if c.LLM.RetryDelay < 0 {
		errs = append(errs, "llm.retry_delay cannot be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n - %s", joinLines(errs))
	}
	return nil
}

// ModelFor resolves the model to use: the task's override if set, otherwise
// the configured default. Empty result means neither is configured, which is
// a fatal initialization error for a run.
func (c *Config) ModelFor(taskModel string) (string, error) {
	if taskModel != "" {
		return taskModel, nil
	}
	if c.LLM.DefaultModel != "" {
		return c.LLM.DefaultModel, nil
	}
	return "", errors.New("no model configured: set llm.default_model or the task's model field")
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n - " + l
	}
	return out
}
