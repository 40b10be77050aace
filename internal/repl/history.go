package repl

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/wesm/gcg/internal/fileutil"
)

// HistoryLimit is the number of lines kept in the history file.
const HistoryLimit = 1000

// History is the persisted list of entered lines, oldest first.
type History struct {
	path    string
	entries []string
}

// LoadHistory reads the history file at path. A missing or unreadable
// file yields an empty history. An empty path disables persistence.
func LoadHistory(path string, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	h := &History{path: path}
	if path == "" {
		return h
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Debug("read history", "path", path, "error", err)
		}
		return h
	}
	for _, line := range strings.Split(string(data), "\n") {
		h.Add(line)
	}
	return h
}

// Add appends line, skipping blanks and immediate repeats.
func (h *History) Add(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return
	}
	h.entries = append(h.entries, line)
	if over := len(h.entries) - HistoryLimit; over > 0 {
		h.entries = append([]string(nil), h.entries[over:]...)
	}
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// At returns entry i.
func (h *History) At(i int) string { return h.entries[i] }

// Entries returns a copy of the entries.
func (h *History) Entries() []string { return append([]string(nil), h.entries...) }

// Save writes the history file, creating its directory.
func (h *History) Save() error {
	if h.path == "" {
		return nil
	}
	if err := fileutil.SecureMkdirAll(filepath.Dir(h.path), 0o700); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	var b strings.Builder
	for _, e := range h.entries {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	if err := fileutil.SecureWriteFile(h.path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
