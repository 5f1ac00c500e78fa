package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"
)

// DefaultPath is the config file used when --config is not given.
const DefaultPath = "configs/moviesearch.yaml"

// Config represents the main application configuration
type Config struct {
	// Metadata provider
	TMDb TMDbConfig `yaml:"tmdb"`

	// Search session tuning
	Search SearchConfig `yaml:"search"`

	// Frontends
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`

	// Application settings
	App AppConfig `yaml:"app"`
}

// TMDbConfig holds TMDb API configuration
type TMDbConfig struct {
	Token        string `yaml:"token"` // API read access token (v4 bearer)
	BaseURL      string `yaml:"base_url,omitempty"`
	Language     string `yaml:"language,omitempty"`
	IncludeAdult bool   `yaml:"include_adult,omitempty"`
}

// SearchConfig tunes the search session. Zero values select the defaults.
type SearchConfig struct {
	StaleTime   time.Duration `yaml:"stale_time,omitempty"`
	CacheSize   int           `yaml:"cache_size,omitempty"`
	PageRange   int           `yaml:"page_range,omitempty"`
	MarginPages int           `yaml:"margin_pages,omitempty"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken       string  `yaml:"bot_token"`
	AllowedUserIDs []int64 `yaml:"allowed_user_ids,omitempty"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	LogLevel string `yaml:"log_level"`          // "debug", "info", "warn", "error"
	LogFile  string `yaml:"log_file,omitempty"` // interactive commands log here, or nowhere
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Load loads configuration from a YAML file with .env and environment
// variable overrides. A missing file is not an error. The TMDb token is
// not required here; callers that need the API call Validate.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.validateSettings(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// readConfigFile returns the file contents, or nil if the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// applyEnvOverrides overrides config values with environment variables
func (c *Config) applyEnvOverrides() {
	// TMDb
	if v := os.Getenv("MOVIESEARCH_TMDB_TOKEN"); v != "" {
		c.TMDb.Token = v
	} else if v := os.Getenv("TMDB_TOKEN"); v != "" && c.TMDb.Token == "" {
		c.TMDb.Token = v
	}
	if v := os.Getenv("MOVIESEARCH_TMDB_BASE_URL"); v != "" {
		c.TMDb.BaseURL = v
	}
	if v := os.Getenv("MOVIESEARCH_TMDB_LANGUAGE"); v != "" {
		c.TMDb.Language = v
	}

	// Telegram
	if v := os.Getenv("MOVIESEARCH_TELEGRAM_BOT_TOKEN"); v != "" {
		if c.Telegram == nil {
			c.Telegram = &TelegramConfig{}
		}
		c.Telegram.BotToken = v
	}

	// App
	if v := os.Getenv("MOVIESEARCH_LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv("MOVIESEARCH_LOG_FILE"); v != "" {
		c.App.LogFile = v
	}
}

func (c *Config) setDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
}

// Validate checks the configuration for commands that talk to TMDb.
func (c *Config) Validate() error {
	if c.TMDb.Token == "" {
		return fmt.Errorf("tmdb.token is required (or set MOVIESEARCH_TMDB_TOKEN)")
	}
	return c.validateSettings()
}

// validateSettings checks everything except the TMDb token.
func (c *Config) validateSettings() error {
	if c.TMDb.BaseURL != "" {
		if err := validateURL(c.TMDb.BaseURL, "tmdb.base_url"); err != nil {
			return err
		}
	}

	if c.Search.StaleTime < 0 {
		return fmt.Errorf("search.stale_time must not be negative")
	}
	if c.Search.CacheSize < 0 {
		return fmt.Errorf("search.cache_size must not be negative")
	}
	if c.Search.PageRange < 0 || c.Search.MarginPages < 0 {
		return fmt.Errorf("search.page_range and search.margin_pages must not be negative")
	}

	if c.Telegram != nil && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}

	if !validLogLevels[c.App.LogLevel] {
		return fmt.Errorf("app.log_level must be one of debug, info, warn, error; got %q", c.App.LogLevel)
	}
	return nil
}

func validateURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must use http or https: %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing host: %q", field, raw)
	}
	return nil
}
