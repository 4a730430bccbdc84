package config

import (
	"errors"
	"io/fs"
	"time"
)

// DefaultConfig returns the built-in configuration defaults. They assume a
// local Anki with the AnkiConnect addon and a local Ollama server.
func DefaultConfig() *Config {
	return &Config{
		Anki: AnkiConfig{
			URL:     "http://127.0.0.1:8765",
			Timeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			URL:        "http://localhost:11434",
			Timeout:    180 * time.Second,
			Retries:    3,
			RetryDelay: 10 * time.Second,
		},
		Run: RunConfig{
			SaveProgress: true,
		},
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
