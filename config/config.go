// Package config loads langsync settings from a YAML file (via viper) and
// the environment.
//
// Lookup order, lowest to highest priority:
//  1. built-in defaults
//  2. langsync.yaml (explicit --config path, or searched in ., ~/.config/langsync, /etc/langsync)
//  3. LANGSYNC_* environment variables (e.g. LANGSYNC_AI_MODEL)
//  4. AI_API_KEY, AI_API_PROVIDER, AI_DEFAULT_MODEL, AI_DEFAULT_PROMPT_FOR_TRANSLATIONS
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppName is used for the config file name, search dirs and env prefix.
const AppName = "langsync"

// DefaultPrompt is the system prompt sent with every translation request
// unless overridden.
const DefaultPrompt = `You are a professional translator. You will be provided with text in a source language, and your task is to translate it accurately into one or more target languages while preserving the original meaning and context. Your translations should be clear, natural, and culturally appropriate for native speakers of the target languages. Avoid literal translations that may not convey the intended message effectively. If you encounter any text that is ambiguous or lacks sufficient context, please indicate this in your response rather than making assumptions.`

// Locale is one entry of the configured locale list.
type Locale struct {
	Code  string `mapstructure:"code"`
	Label string `mapstructure:"label"`
	// Flag is a two-letter region code used to render a flag emoji.
	Flag string `mapstructure:"flag"`
}

// AI holds the translation provider settings.
type AI struct {
	APIKey   string        `mapstructure:"api_key"`
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	Prompt   string        `mapstructure:"prompt"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Scanner controls key extraction.
type Scanner struct {
	Functions     []string `mapstructure:"functions"`
	FlatFunctions []string `mapstructure:"flat_functions"`
	Extensions    []string `mapstructure:"extensions"`
}

// Log controls logger output.
type Log struct {
	Level string `mapstructure:"level"`
}

// Worker controls the background job runner.
type Worker struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
}

// Config is the full langsync configuration. It is passed explicitly to
// every service; nothing reads it from globals.
type Config struct {
	Paths          []string `mapstructure:"paths"`
	ExcludedPaths  []string `mapstructure:"excluded_paths"`
	DefaultLocale  string   `mapstructure:"default_locale"`
	Locales        []Locale `mapstructure:"locales"`
	ExcludeGroups  []string `mapstructure:"exclude_groups"`
	UseQueueOnScan bool     `mapstructure:"use_queue_on_scan"`
	LangPath       string   `mapstructure:"lang_path"`
	Database       string   `mapstructure:"database"`

	Scanner Scanner `mapstructure:"scanner"`
	AI      AI      `mapstructure:"ai"`
	Log     Log     `mapstructure:"log"`
	Worker  Worker  `mapstructure:"worker"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Paths:         []string{"app", "resources/views"},
		DefaultLocale: "en",
		Locales: []Locale{
			{Code: "en", Label: "English", Flag: "us"},
			{Code: "ar", Label: "Arabic", Flag: "eg"},
			{Code: "fr", Label: "French", Flag: "fr"},
		},
		UseQueueOnScan: true,
		LangPath:       "lang",
		Database:       "langsync.db",
		Scanner: Scanner{
			Functions: []string{
				"trans", "trans_choice",
				"Lang::get", "Lang::choice", "Lang::trans", "Lang::transChoice", "Lang::getFromJson",
				"@lang", "@choice", "__", "$t", "i18n.t",
			},
			FlatFunctions: []string{"__", "Lang::getFromJson", "@lang", "$t"},
			Extensions:    []string{".php", ".js", ".ts", ".jsx", ".tsx", ".vue", ".html", ".twig", ".go"},
		},
		AI: AI{
			Provider: "openai",
			Model:    "gpt-3.5-turbo",
			Prompt:   DefaultPrompt,
			Timeout:  120 * time.Second,
		},
		Log: Log{Level: "info"},
		Worker: Worker{
			PollInterval: 2 * time.Second,
		},
	}
}

func searchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", AppName))
	}
	return append(paths, filepath.Join("/etc", AppName))
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("paths", d.Paths)
	v.SetDefault("excluded_paths", d.ExcludedPaths)
	v.SetDefault("default_locale", d.DefaultLocale)
	locales := make([]map[string]any, 0, len(d.Locales))
	for _, l := range d.Locales {
		locales = append(locales, map[string]any{"code": l.Code, "label": l.Label, "flag": l.Flag})
	}
	v.SetDefault("locales", locales)
	v.SetDefault("exclude_groups", d.ExcludeGroups)
	v.SetDefault("use_queue_on_scan", d.UseQueueOnScan)
	v.SetDefault("lang_path", d.LangPath)
	v.SetDefault("database", d.Database)
	v.SetDefault("scanner.functions", d.Scanner.Functions)
	v.SetDefault("scanner.flat_functions", d.Scanner.FlatFunctions)
	v.SetDefault("scanner.extensions", d.Scanner.Extensions)
	v.SetDefault("ai.api_key", d.AI.APIKey)
	v.SetDefault("ai.provider", d.AI.Provider)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.prompt", d.AI.Prompt)
	v.SetDefault("ai.base_url", d.AI.BaseURL)
	v.SetDefault("ai.timeout", d.AI.Timeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("worker.poll_interval", d.Worker.PollInterval)
	v.SetDefault("worker.metrics_addr", d.Worker.MetricsAddr)
}

// Load reads the configuration. An empty path searches the default
// locations; a missing file there is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AppName)
		for _, p := range searchPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the locale configuration.
func (c *Config) Validate() error {
	if len(c.Locales) == 0 {
		return fmt.Errorf("no locales configured")
	}
	seen := make(map[string]bool, len(c.Locales))
	for i, l := range c.Locales {
		if strings.TrimSpace(l.Code) == "" {
			return fmt.Errorf("locale #%d has no code", i+1)
		}
		if seen[l.Code] {
			return fmt.Errorf("duplicate locale %q", l.Code)
		}
		seen[l.Code] = true
	}
	if !seen[c.DefaultLocale] {
		return fmt.Errorf("default locale %q is not in the locale list", c.DefaultLocale)
	}
	return nil
}

// LocaleCodes returns the configured locale codes in declaration order.
func (c *Config) LocaleCodes() []string {
	codes := make([]string, 0, len(c.Locales))
	for _, l := range c.Locales {
		codes = append(codes, l.Code)
	}
	return codes
}

// HasLocale reports whether code is configured.
func (c *Config) HasLocale(code string) bool {
	for _, l := range c.Locales {
		if l.Code == code {
			return true
		}
	}
	return false
}

// keylessProviders talk to local servers and need no API key.
var keylessProviders = map[string]bool{
	"ollama": true,
}

// AIReady reports whether enough AI settings are present to send requests.
func (c *Config) AIReady() bool {
	a := c.AI
	if a.Provider == "" || a.Model == "" || strings.TrimSpace(a.Prompt) == "" {
		return false
	}
	return a.APIKey != "" || keylessProviders[a.Provider]
}
