// Package cache maintains a sidecar file of book metadata (counts and
// notes capabilities) so repeated invocations can skip probing the book.
// Query results never depend on it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/wesm/gcg/internal/book"
	"github.com/wesm/gcg/internal/fileutil"
)

// schemaVersion is bumped whenever the cache layout changes; caches with
// another version are treated as stale.
const schemaVersion = 1

// Bucket names.
const (
	BucketMeta     = "meta"
	BucketAccounts = "accounts"
)

var metaKey = []byte("book")

// Snapshot is the book data a cache is built from. *book.Store implements it.
type Snapshot interface {
	Info() book.Info
	SplitCounts(ctx context.Context) (map[string]int64, error)
}

// Meta is the JSON document stored under meta/book.
type Meta struct {
	SchemaVersion int       `json:"schema_version"`
	BookPath      string    `json:"book_path"`
	BookSize      int64     `json:"book_size"`
	BookModTime   int64     `json:"book_mtime_ns"`
	BuiltAt       time.Time `json:"built_at"`
	Info          book.Info `json:"info"`
	SplitCount    int64     `json:"split_count"`
}

// Status describes the cache file.
type Status struct {
	Exists     bool      `json:"exists"`
	SizeBytes  int64     `json:"size_bytes"`
	Modified   time.Time `json:"modified"`
	SplitCount int64     `json:"split_count"`
	Stale      bool      `json:"stale"`
}

// BuildResult reports what Build did.
type BuildResult struct {
	Skipped bool // an existing cache was kept
	Meta    Meta
}

// Manager owns the cache file for one book.
type Manager struct {
	path     string
	bookPath string
	logger   *slog.Logger
}

// New returns a manager for the cache at path describing the book at
// bookPath. Nothing is opened until a method is called.
func New(path, bookPath string) *Manager {
	return &Manager{path: path, bookPath: bookPath, logger: slog.Default()}
}

// WithLogger sets the logger used for cache events.
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Path returns the cache file path.
func (m *Manager) Path() string { return m.path }

// Build writes the cache from snap. An existing readable cache is kept
// unless force is set. The file is written to a temporary name and renamed
// into place.
func (m *Manager) Build(ctx context.Context, snap Snapshot, force bool) (BuildResult, error) {
	if !force {
		if meta, err := m.readMeta(); err == nil {
			m.logger.Debug("cache exists, skipping build", "path", m.path)
			return BuildResult{Skipped: true, Meta: meta}, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("cache unreadable, rebuilding", "path", m.path, "error", err)
		}
	}

	counts, err := snap.SplitCounts(ctx)
	if err != nil {
		return BuildResult{}, fmt.Errorf("read split counts: %w", err)
	}
	meta := Meta{
		SchemaVersion: schemaVersion,
		BookPath:      m.bookPath,
		BuiltAt:       time.Now().UTC(),
		Info:          snap.Info(),
	}
	if fi, err := os.Stat(m.bookPath); err == nil {
		meta.BookSize = fi.Size()
		meta.BookModTime = fi.ModTime().UnixNano()
	}
	for _, n := range counts {
		meta.SplitCount += n
	}

	if err := fileutil.SecureMkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return BuildResult{}, fmt.Errorf("create cache dir: %w", err)
	}
	tmp := m.path + ".tmp"
	_ = os.Remove(tmp)
	if err := writeCache(tmp, meta, counts); err != nil {
		_ = os.Remove(tmp)
		return BuildResult{}, err
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return BuildResult{}, fmt.Errorf("install cache: %w", err)
	}
	m.logger.Info("cache built", "path", m.path, "accounts", len(counts), "splits", meta.SplitCount)
	return BuildResult{Meta: meta}, nil
}

func writeCache(path string, meta Meta, counts map[string]int64) error {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		mb, err := tx.CreateBucketIfNotExists([]byte(BucketMeta))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", BucketMeta, err)
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal meta: %w", err)
		}
		if err := mb.Put(metaKey, data); err != nil {
			return err
		}

		ab, err := tx.CreateBucketIfNotExists([]byte(BucketAccounts))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", BucketAccounts, err)
		}
		for guid, n := range counts {
			if err := ab.Put([]byte(guid), []byte(strconv.FormatInt(n, 10))); err != nil {
				return err
			}
		}
		return nil
	})
	if cerr := db.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close cache: %w", cerr)
	}
	return err
}

// view opens the cache read-only and runs fn in a read transaction.
// A missing file yields an error wrapping os.ErrNotExist.
func (m *Manager) view(fn func(tx *bolt.Tx) error) error {
	if _, err := os.Stat(m.path); err != nil {
		return err
	}
	db, err := bolt.Open(m.path, 0o600, &bolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer db.Close()
	return db.View(fn)
}

func (m *Manager) readMeta() (Meta, error) {
	var meta Meta
	err := m.view(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketMeta))
		if b == nil {
			return fmt.Errorf("bucket %s not found", BucketMeta)
		}
		data := b.Get(metaKey)
		if data == nil {
			return errors.New("cache has no book metadata")
		}
		return json.Unmarshal(data, &meta)
	})
	return meta, err
}

// AccountSplitCounts returns the per-account split counts stored in the
// cache, keyed by account GUID.
func (m *Manager) AccountSplitCounts() (map[string]int64, error) {
	counts := make(map[string]int64)
	err := m.view(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketAccounts))
		if b == nil {
			return fmt.Errorf("bucket %s not found", BucketAccounts)
		}
		return b.ForEach(func(k, v []byte) error {
			n, err := strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				return fmt.Errorf("split count for %s: %w", k, err)
			}
			counts[string(k)] = n
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Status reports on the cache file. A missing cache is not an error.
// A cache whose metadata cannot be read is reported as stale.
func (m *Manager) Status() (Status, error) {
	fi, err := os.Stat(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("stat cache: %w", err)
	}
	st := Status{Exists: true, SizeBytes: fi.Size(), Modified: fi.ModTime()}

	meta, err := m.readMeta()
	if err != nil {
		m.logger.Debug("cache metadata unreadable", "path", m.path, "error", err)
		st.Stale = true
		return st, nil
	}
	st.SplitCount = meta.SplitCount
	st.Stale = m.stale(meta)
	return st, nil
}

// stale reports whether meta no longer describes the book on disk.
func (m *Manager) stale(meta Meta) bool {
	if meta.SchemaVersion != schemaVersion || meta.BookPath != m.bookPath {
		return true
	}
	fi, err := os.Stat(m.bookPath)
	if err != nil {
		return true
	}
	return fi.Size() != meta.BookSize || fi.ModTime().UnixNano() != meta.BookModTime
}

// Drop removes the cache file and reports whether there was one.
func (m *Manager) Drop() (bool, error) {
	err := os.Remove(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove cache: %w", err)
	}
	m.logger.Debug("cache dropped", "path", m.path)
	return true, nil
}

// Capabilities returns the notes capabilities recorded in a fresh cache.
// ok is false when the cache is missing, unreadable or stale.
func (m *Manager) Capabilities() (book.Capabilities, bool) {
	meta, err := m.readMeta()
	if err != nil || m.stale(meta) {
		m.logger.Debug("cache miss", "path", m.path)
		return book.Capabilities{}, false
	}
	m.logger.Debug("cache hit", "path", m.path)
	return meta.Info.Capabilities, true
}
