package book

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrBookOpen is wrapped by every *OpenError.
	ErrBookOpen = errors.New("cannot open book")

	// ErrNotFound is returned when a transaction or split GUID is unknown.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by calls on a closed Store.
	ErrClosed = errors.New("book store is closed")
)

// OpenError describes why a book could not be opened read-only.
type OpenError struct {
	Path   string
	Reason string // "not found", "locked", "not a GnuCash SQLite book", ...
	Err    error  // underlying cause, may be nil
}

func (e *OpenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("open book %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("open book %s: %s", e.Path, e.Reason)
}

// Unwrap exposes both ErrBookOpen and the underlying cause to errors.Is.
func (e *OpenError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBookOpen}
	}
	return []error{ErrBookOpen, e.Err}
}

// isSQLiteError checks if err is a sqlite3.Error with a message containing substr.
// Handles both value (sqlite3.Error) and pointer (*sqlite3.Error) forms.
func isSQLiteError(err error, substr string) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return strings.Contains(sqliteErr.Error(), substr)
	}
	var sqliteErrPtr *sqlite3.Error
	if errors.As(err, &sqliteErrPtr) && sqliteErrPtr != nil {
		return strings.Contains(sqliteErrPtr.Error(), substr)
	}
	return false
}

// sqliteCode extracts the primary result code of a driver error.
func sqliteCode(err error) (sqlite3.ErrNo, bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code, true
	}
	var sqliteErrPtr *sqlite3.Error
	if errors.As(err, &sqliteErrPtr) && sqliteErrPtr != nil {
		return sqliteErrPtr.Code, true
	}
	return 0, false
}

// classifyOpenError turns a driver error seen while probing a freshly
// opened file into an *OpenError with a user-facing reason.
func classifyOpenError(path string, err error) *OpenError {
	reason := "cannot read book"
	if code, ok := sqliteCode(err); ok {
		switch code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			reason = "locked by another process"
		case sqlite3.ErrNotADB:
			reason = "not a GnuCash SQLite book"
		case sqlite3.ErrCantOpen, sqlite3.ErrPerm, sqlite3.ErrAuth:
			reason = "permission denied or unreadable"
		case sqlite3.ErrCorrupt:
			reason = "database file is corrupt"
		}
	} else if isSQLiteError(err, "file is not a database") {
		reason = "not a GnuCash SQLite book"
	}
	return &OpenError{Path: path, Reason: reason, Err: err}
}
