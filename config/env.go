package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// aiEnv holds the unprefixed AI_* variables used by Laravel-style .env files.
type aiEnv struct {
	APIKey   string `env:"AI_API_KEY"`
	Provider string `env:"AI_API_PROVIDER"`
	Model    string `env:"AI_DEFAULT_MODEL"`
	Prompt   string `env:"AI_DEFAULT_PROMPT_FOR_TRANSLATIONS"`
}

// applyEnv overlays non-empty environment values onto cfg.
func applyEnv(cfg *Config) error {
	var e aiEnv
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if e.APIKey != "" {
		cfg.AI.APIKey = e.APIKey
	}
	if e.Provider != "" {
		cfg.AI.Provider = e.Provider
	}
	if e.Model != "" {
		cfg.AI.Model = e.Model
	}
	if e.Prompt != "" {
		cfg.AI.Prompt = e.Prompt
	}
	return nil
}
