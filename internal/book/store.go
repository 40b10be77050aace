// Package book provides read-only access to GnuCash SQLite books.
package book

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wesm/gcg/internal/currency"
)

// SchemaSQL is the subset of the GnuCash schema this package reads.
// Test fixtures use it to create books.
//
//go:embed schema.sql
var SchemaSQL string

// Book files are always opened read-only; query_only also rejects writes
// issued through the same connection.
const readOnlyParams = "mode=ro&_query_only=1&_busy_timeout=5000"

// Tables without which a file is not treated as a GnuCash book.
var requiredTables = []string{"accounts", "commodities", "splits", "transactions"}

// Options configures Open.
type Options struct {
	Logger *slog.Logger

	// Capabilities, when non-nil, skips probing the schema for notes
	// storage. The sidecar cache supplies it.
	Capabilities *Capabilities
}

// Store is an open, read-only GnuCash book.
type Store struct {
	db     *sql.DB
	path   string
	info   Info
	tree   *AccountTree
	logger *slog.Logger

	mu     sync.Mutex
	txs    map[string]*Transaction
	notes  map[string]string
	prices map[currency.Pair]priceSeries
	closed bool
}

// FileURI returns the SQLite URI for the file at path with the given
// query parameters. The path is made absolute and percent-escaped, so
// names containing '?', '#' or '%' are not read as URI syntax.
func FileURI(path, params string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		// Windows drive paths become file:///C:/...
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p, RawQuery: params}
	return u.String(), nil
}

// Open opens the book at path read-only, loads the account tree, and
// gathers book metadata.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &OpenError{Path: path, Reason: "not found"}
		}
		return nil, &OpenError{Path: path, Reason: "cannot stat", Err: err}
	}
	if fi.IsDir() {
		return nil, &OpenError{Path: path, Reason: "is a directory"}
	}

	dsn, err := FileURI(path, readOnlyParams)
	if err != nil {
		return nil, &OpenError{Path: path, Reason: "cannot open", Err: err}
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &OpenError{Path: path, Reason: "cannot open", Err: err}
	}

	s := &Store{
		db:     db,
		path:   path,
		logger: logger,
		txs:    make(map[string]*Transaction),
		notes:  make(map[string]string),
		prices: make(map[currency.Pair]priceSeries),
	}
	if err := s.init(ctx, opts); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("opened book",
		"path", path,
		"accounts", s.info.AccountCount,
		"transactions", s.info.TransactionCount,
		"notes_column", s.info.Capabilities.HasNotesColumn,
		"slots_notes", s.info.Capabilities.HasSlotsNotes)
	return s, nil
}

func (s *Store) init(ctx context.Context, opts Options) error {
	tables, err := s.tableNames(ctx)
	if err != nil {
		return classifyOpenError(s.path, err)
	}
	for _, t := range requiredTables {
		if !tables[t] {
			return &OpenError{Path: s.path, Reason: "not a GnuCash SQLite book", Err: fmt.Errorf("missing table %q", t)}
		}
	}

	if tables["gnclock"] {
		var holders int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gnclock`).Scan(&holders); err == nil && holders > 0 {
			s.logger.Warn("book is open in GnuCash; reading a snapshot read-only", "path", s.path)
		}
	}

	root, err := s.rootAccountGUID(ctx, tables["books"])
	if err != nil {
		return classifyOpenError(s.path, err)
	}
	tree, rootCommodity, err := s.loadAccounts(ctx, root)
	if err != nil {
		return classifyOpenError(s.path, err)
	}
	s.tree = tree

	var caps Capabilities
	if opts.Capabilities != nil {
		caps = *opts.Capabilities
	} else if caps, err = s.probeCapabilities(ctx, tables["slots"]); err != nil {
		return classifyOpenError(s.path, err)
	}

	var txCount int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&txCount); err != nil {
		return classifyOpenError(s.path, err)
	}

	defaultCurrency := rootCommodity
	if defaultCurrency == "" {
		defaultCurrency, err = s.mostUsedCurrency(ctx)
		if err != nil {
			return classifyOpenError(s.path, err)
		}
	}

	s.info = Info{
		Path:             s.path,
		DefaultCurrency:  defaultCurrency,
		AccountCount:     tree.Len(),
		TransactionCount: txCount,
		Capabilities:     caps,
	}
	return nil
}

func (s *Store) tableNames(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables[name] = true
	}
	return tables, rows.Err()
}

// probeCapabilities inspects the schema for the two places GnuCash has
// kept transaction notes.
func (s *Store) probeCapabilities(ctx context.Context, hasSlots bool) (Capabilities, error) {
	var caps Capabilities

	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(transactions)`)
	if err != nil {
		return caps, err
	}
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return caps, err
		}
		if name == "notes" {
			caps.HasNotesColumn = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return caps, err
	}

	if hasSlots {
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM slots WHERE name = 'notes')`).Scan(&caps.HasSlotsNotes)
		if err != nil {
			return caps, err
		}
	}
	return caps, nil
}

func (s *Store) mostUsedCurrency(ctx context.Context) (string, error) {
	var mnemonic string
	err := s.db.QueryRowContext(ctx, `
		SELECT c.mnemonic
		FROM transactions t
		JOIN commodities c ON c.guid = t.currency_guid
		GROUP BY c.mnemonic
		ORDER BY COUNT(*) DESC, c.mnemonic
		LIMIT 1`).Scan(&mnemonic)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return mnemonic, err
}

// Path returns the book file path.
func (s *Store) Path() string { return s.path }

// Info returns the metadata gathered at open time.
func (s *Store) Info() Info { return s.info }

// Accounts returns the account tree.
func (s *Store) Accounts() *AccountTree { return s.tree }

// Close closes the database connection. Calling Close more than once is
// harmless.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// SplitCounts returns the number of splits posted to each account GUID.
func (s *Store) SplitCounts(ctx context.Context) (map[string]int64, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT account_guid, COUNT(*) FROM splits GROUP BY account_guid`)
	if err != nil {
		return nil, fmt.Errorf("count splits: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var guid string
		var n int64
		if err := rows.Scan(&guid, &n); err != nil {
			return nil, fmt.Errorf("scan split count: %w", err)
		}
		counts[guid] = n
	}
	return counts, rows.Err()
}
