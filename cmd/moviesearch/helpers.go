package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/vadimtrunov/MovieSearch/internal/config"
	"github.com/vadimtrunov/MovieSearch/internal/metadata/tmdb"
	"github.com/vadimtrunov/MovieSearch/internal/query"
	"github.com/vadimtrunov/MovieSearch/internal/search"
)

// Lipgloss styles used across commands.
var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // blue
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	styleRating  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow

	styleTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true) // white bold

	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("5")).
			MarginBottom(1)
)

// loadConfig loads the configuration file. The TMDb token is not required
// at this point; see loadValidConfig.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// loadValidConfig loads the configuration and fails fast when it cannot be
// used to talk to TMDb.
func loadValidConfig(path string) (*config.Config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupCLILogger logs to stderr, keeping stdout for command output.
func setupCLILogger(cfg *config.Config) *slog.Logger {
	return config.SetupLogger(cfg.App.LogLevel, os.Stderr)
}

// newTMDbClient creates the TMDb client from configuration.
func newTMDbClient(cfg *config.Config, logger *slog.Logger) *tmdb.Client {
	opts := tmdb.Options{
		BaseURL:      cfg.TMDb.BaseURL,
		Language:     cfg.TMDb.Language,
		IncludeAdult: cfg.TMDb.IncludeAdult,
	}
	if opts.BaseURL != "" {
		logger.Info("using custom TMDb base URL", slog.String("url", sanitizeURL(opts.BaseURL)))
	}
	return tmdb.New(cfg.TMDb.Token, opts, logger)
}

// sessionOptions maps the search section of the configuration onto session options.
func sessionOptions(cfg *config.Config, notifier search.Notifier, logger *slog.Logger) search.Options {
	return search.Options{
		StaleTime:   cfg.Search.StaleTime,
		CacheSize:   cfg.Search.CacheSize,
		PageRange:   cfg.Search.PageRange,
		MarginPages: cfg.Search.MarginPages,
		Notifier:    notifier,
		Logger:      logger,
	}
}

// queryOptions maps the search section of the configuration onto query cache options.
func queryOptions(cfg *config.Config) query.Options {
	return query.Options{
		StaleTime: cfg.Search.StaleTime,
		CacheSize: cfg.Search.CacheSize,
	}
}

// sanitizeURL strips credentials, query params, and fragment from a URL for safe logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return "<redacted>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// titleWithYear renders "Dune (2021)", or just the title when the year is unknown.
func titleWithYear(m tmdb.Movie) string {
	if y := m.Year(); y > 0 {
		return fmt.Sprintf("%s (%d)", m.Title, y)
	}
	return m.Title
}

// wrapText word-wraps s to width columns.
func wrapText(s string, width int) string {
	if width < 10 {
		width = 10
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}
