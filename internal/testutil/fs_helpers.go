package testutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content under dir, creating parent directories, and
// returns the full path. name must be relative.
func WriteFile(t testing.TB, dir, name string, content []byte) string {
	t.Helper()
	if filepath.IsAbs(name) {
		t.Fatalf("WriteFile: absolute path not allowed: %s", name)
	}
	path := filepath.Join(dir, filepath.Clean(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create dir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// WriteConfig writes a config.toml into home and returns its path.
func WriteConfig(t testing.TB, home, toml string) string {
	t.Helper()
	return WriteFile(t, home, "config.toml", []byte(toml))
}

// ReadFile returns the content of path.
func ReadFile(t testing.TB, path string) []byte {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return content
}

// MustExist fails the test unless path can be stat'ed.
func MustExist(t testing.TB, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

// MustNotExist fails the test if path exists. Errors other than
// not-exist fail it too.
func MustNotExist(t testing.TB, path string) {
	t.Helper()
	_, err := os.Stat(path)
	switch {
	case err == nil:
		t.Fatalf("expected %s to not exist", path)
	case !errors.Is(err, fs.ErrNotExist):
		t.Fatalf("stat %s: %v", path, err)
	}
}
