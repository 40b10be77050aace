// Package config handles loading and managing gcg configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Rhymond/go-money"

	"github.com/wesm/gcg/internal/currency"
)

// ErrNoBook is returned when no book path is configured anywhere.
var ErrNoBook = errors.New("no book configured (use --book, GCG_BOOK, or [book] path in config.toml)")

// Config represents the gcg configuration.
type Config struct {
	Book     BookConfig     `toml:"book"`
	Currency CurrencyConfig `toml:"currency"`
	Output   OutputConfig   `toml:"output"`
	Cache    CacheConfig    `toml:"cache"`
	REPL     REPLConfig     `toml:"repl"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	configPath string
}

// BookConfig locates the GnuCash book.
type BookConfig struct {
	Path string `toml:"path"` // SQLite book file; GCG_BOOK overrides
}

// CurrencyConfig holds conversion defaults.
type CurrencyConfig struct {
	Base           string `toml:"base"`             // ISO 4217 code used by base/auto modes
	FXLookbackDays int    `toml:"fx_lookback_days"` // Max days a rate lookup searches backward
	Mode           string `toml:"mode"`             // auto, base, account, split
}

// OutputConfig holds formatter defaults.
type OutputConfig struct {
	Format string `toml:"format"` // table, csv, json
	Header bool   `toml:"header"`
}

// CacheConfig controls the sidecar cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// REPLConfig holds interactive shell settings.
type REPLConfig struct {
	HistoryPath string `toml:"history_path"`
}

// DefaultHome returns the default gcg home directory.
// Respects GCG_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("GCG_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gcg"
	}
	return filepath.Join(home, ".gcg")
}

// StateHome returns $XDG_STATE_HOME, defaulting to ~/.local/state.
func StateHome() string {
	if s := os.Getenv("XDG_STATE_HOME"); s != "" {
		return expandPath(s)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".local", "state")
	}
	return filepath.Join(home, ".local", "state")
}

// Load reads the configuration from the specified file.
// If path is empty, uses config.toml under homeDir, or under the default
// home (~/.gcg) when homeDir is empty too.
func Load(path, homeDir string) (*Config, error) {
	if homeDir == "" {
		homeDir = DefaultHome()
	} else {
		homeDir = expandPath(homeDir)
	}

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir:    homeDir,
		configPath: path,
		// Defaults
		Currency: CurrencyConfig{
			Base:           "EUR",
			FXLookbackDays: 7,
			Mode:           "auto",
		},
		Output: OutputConfig{
			Format: "table",
			Header: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    filepath.Join(homeDir, "cache.db"),
		},
		REPL: REPLConfig{
			HistoryPath: filepath.Join(StateHome(), "gcg", "history"),
		},
	}

	// Config file is optional - use defaults if not present
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	if env := os.Getenv("GCG_BOOK"); env != "" {
		cfg.Book.Path = env
	}

	// Expand ~ in paths
	cfg.Book.Path = expandPath(cfg.Book.Path)
	cfg.Cache.Path = expandPath(cfg.Cache.Path)
	cfg.REPL.HistoryPath = expandPath(cfg.REPL.HistoryPath)

	cfg.Currency.Base = strings.ToUpper(strings.TrimSpace(cfg.Currency.Base))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a query.
func (c *Config) Validate() error {
	if err := ValidateCurrency(c.Currency.Base); err != nil {
		return fmt.Errorf("currency.base: %w", err)
	}
	if c.Currency.FXLookbackDays < 0 {
		return fmt.Errorf("currency.fx_lookback_days must not be negative, got %d", c.Currency.FXLookbackDays)
	}
	mode, err := currency.ParseMode(c.Currency.Mode)
	if err != nil {
		return fmt.Errorf("currency.mode: %w", err)
	}
	c.Currency.Mode = mode.String()
	switch c.Output.Format {
	case "table", "csv", "json":
	default:
		return fmt.Errorf("output.format must be table, csv or json, got %q", c.Output.Format)
	}
	return nil
}

// ValidateCurrency reports whether code is a known ISO 4217 currency.
func ValidateCurrency(code string) error {
	if money.GetCurrency(code) == nil {
		return fmt.Errorf("unknown currency code %q", code)
	}
	return nil
}

// ConfigFilePath returns the path of the config file that was (or would be) read.
func (c *Config) ConfigFilePath() string {
	return c.configPath
}

// ResolveBookPath returns the absolute path of the configured book.
func (c *Config) ResolveBookPath() (string, error) {
	if c.Book.Path == "" {
		return "", ErrNoBook
	}
	abs, err := filepath.Abs(expandPath(c.Book.Path))
	if err != nil {
		return "", fmt.Errorf("resolve book path: %w", err)
	}
	return abs, nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
