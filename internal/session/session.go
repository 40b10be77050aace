// Package session owns the book handle shared by the commands of one CLI
// invocation or one interactive shell.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wesm/gcg/internal/book"
	"github.com/wesm/gcg/internal/cache"
)

// ErrNoBookOpen is returned by Store when no book is open.
var ErrNoBookOpen = errors.New("no book open")

// Options configures a Session.
type Options struct {
	Logger *slog.Logger

	// CachePath enables the sidecar cache; empty disables it.
	CachePath string
}

type openFunc func(ctx context.Context, path string, opts book.Options) (*book.Store, error)

// Session holds at most one open book. Each handle is closed exactly once:
// by Close, or when Open replaces it.
type Session struct {
	opts   Options
	logger *slog.Logger
	open   openFunc

	mu    sync.Mutex
	store *book.Store
}

// New returns an empty session.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{opts: opts, logger: logger, open: book.Open}
}

// Open opens the book at path, closing any book already open. The previous
// handle is closed even when the new open fails.
func (s *Session) Open(ctx context.Context, path string) (*book.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeLocked(); err != nil {
		s.logger.Warn("close previous book", "error", err)
	}

	opts := book.Options{Logger: s.logger}
	if m := s.Cache(path); m != nil {
		if caps, ok := m.Capabilities(); ok {
			opts.Capabilities = &caps
		}
	}
	st, err := s.open(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	s.store = st
	return st, nil
}

// Cache returns the cache manager for the book at path, or nil when the
// cache is disabled.
func (s *Session) Cache(path string) *cache.Manager {
	if s.opts.CachePath == "" {
		return nil
	}
	return cache.New(s.opts.CachePath, path).WithLogger(s.logger)
}

// Store returns the open book.
func (s *Session) Store() (*book.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, ErrNoBookOpen
	}
	return s.store, nil
}

// IsOpen reports whether a book is open.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store != nil
}

// Close closes the open book, if any. It is safe to call repeatedly.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.store == nil {
		return nil
	}
	st := s.store
	s.store = nil
	if err := st.Close(); err != nil {
		return fmt.Errorf("close book %s: %w", st.Path(), err)
	}
	s.logger.Debug("book closed", "path", st.Path())
	return nil
}
