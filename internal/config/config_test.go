package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wesm/gcg/internal/testutil"
)

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("GCG_HOME", tmpDir)
	t.Setenv("GCG_BOOK", "")
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmpDir, "state"))

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Currency.Base != "EUR" {
		t.Errorf("Currency.Base = %q, want EUR", cfg.Currency.Base)
	}
	if cfg.Currency.FXLookbackDays != 7 {
		t.Errorf("Currency.FXLookbackDays = %d, want 7", cfg.Currency.FXLookbackDays)
	}
	if cfg.Currency.Mode != "auto" {
		t.Errorf("Currency.Mode = %q, want auto", cfg.Currency.Mode)
	}
	if cfg.Output.Format != "table" || !cfg.Output.Header {
		t.Errorf("Output = %+v, want table with header", cfg.Output)
	}
	if want := filepath.Join(tmpDir, "cache.db"); cfg.Cache.Path != want {
		t.Errorf("Cache.Path = %q, want %q", cfg.Cache.Path, want)
	}
	if want := filepath.Join(tmpDir, "state", "gcg", "history"); cfg.REPL.HistoryPath != want {
		t.Errorf("REPL.HistoryPath = %q, want %q", cfg.REPL.HistoryPath, want)
	}
	if _, err := cfg.ResolveBookPath(); !errors.Is(err, ErrNoBook) {
		t.Errorf("ResolveBookPath() error = %v, want ErrNoBook", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("GCG_HOME", tmpDir)
	t.Setenv("GCG_BOOK", "")

	configContent := `
[book]
path = "/data/asso.gnucash"

[currency]
base = "usd"
fx_lookback_days = 30
mode = "Base"

[output]
format = "json"
header = false

[cache]
enabled = false
`
	configPath := testutil.WriteConfig(t, tmpDir, configContent)

	cfg, err := Load(configPath, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Book.Path != "/data/asso.gnucash" {
		t.Errorf("Book.Path = %q", cfg.Book.Path)
	}
	if cfg.Currency.Base != "USD" {
		t.Errorf("Currency.Base = %q, want USD (upper-cased)", cfg.Currency.Base)
	}
	if cfg.Currency.FXLookbackDays != 30 {
		t.Errorf("Currency.FXLookbackDays = %d, want 30", cfg.Currency.FXLookbackDays)
	}
	if cfg.Currency.Mode != "base" {
		t.Errorf("Currency.Mode = %q, want base (normalized)", cfg.Currency.Mode)
	}
	if cfg.Output.Format != "json" || cfg.Output.Header {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}
	if cfg.ConfigFilePath() != configPath {
		t.Errorf("ConfigFilePath() = %q, want %q", cfg.ConfigFilePath(), configPath)
	}
}

func TestEnvBookOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("GCG_HOME", tmpDir)
	t.Setenv("GCG_BOOK", filepath.Join(tmpDir, "env.gnucash"))

	testutil.WriteConfig(t, tmpDir, "[book]\npath = \"/from/file.gnucash\"\n")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, err := cfg.ResolveBookPath()
	if err != nil {
		t.Fatalf("ResolveBookPath() error = %v", err)
	}
	if want := filepath.Join(tmpDir, "env.gnucash"); got != want {
		t.Errorf("ResolveBookPath() = %q, want %q", got, want)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown currency", "[currency]\nbase = \"XYZ\"\n", "unknown currency"},
		{"negative lookback", "[currency]\nfx_lookback_days = -1\n", "fx_lookback_days"},
		{"bad format", "[output]\nformat = \"xml\"\n", "output.format"},
		{"bad currency mode", "[currency]\nmode = \"bse\"\n", "currency.mode"},
		{"malformed toml", "[currency\n", "decode config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			t.Setenv("GCG_BOOK", "")
			configPath := testutil.WriteConfig(t, tmpDir, tt.content)
			_, err := Load(configPath, tmpDir)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"~", home},
		{"~/books/a.gnucash", filepath.Join(home, "books", "a.gnucash")},
		{"/abs/path", "/abs/path"},
		{"~other/x", "~other/x"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
