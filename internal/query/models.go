// Package query resolves account patterns, filters splits and assembles
// sorted, currency-normalized rows over a GnuCash book.
// The package never writes to output streams; callers render the rows it
// returns and map its Outcome to an exit code.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wesm/gcg/internal/currency"
)

// AccountSelector picks accounts by their full colon-delimited name.
type AccountSelector struct {
	Pattern        string // empty matches every account
	Regex          bool
	CaseSensitive  bool
	IncludeSubtree bool
}

// Field is a searchable text field of a split row.
type Field int

const (
	FieldDescription Field = iota
	FieldMemo
	FieldNotes
)

func (f Field) String() string {
	switch f {
	case FieldDescription:
		return "desc"
	case FieldMemo:
		return "memo"
	case FieldNotes:
		return "notes"
	default:
		return "unknown"
	}
}

// AllFields is the default field set for text search.
var AllFields = []Field{FieldDescription, FieldMemo, FieldNotes}

// ParseFields parses a comma-separated list such as "desc,memo".
// "description" is accepted as an alias of "desc". Duplicates are dropped.
func ParseFields(s string) ([]Field, error) {
	var out []Field
	seen := make(map[Field]bool)
	for _, part := range strings.Split(s, ",") {
		var f Field
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "desc", "description":
			f = FieldDescription
		case "memo":
			f = FieldMemo
		case "notes":
			f = FieldNotes
		case "":
			continue
		default:
			return nil, fmt.Errorf("unknown search field %q (want desc, memo or notes)", part)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no search fields in %q", s)
	}
	return out, nil
}

// TextSelector matches against the requested fields of a split row.
type TextSelector struct {
	Pattern       string // empty matches every row
	Regex         bool
	CaseSensitive bool
	Fields        []Field // nil means AllFields
}

// DateWindow bounds the transaction post date: After is inclusive,
// Before is exclusive. Nil bounds are open.
type DateWindow struct {
	After  *time.Time
	Before *time.Time
}

// AmountWindow bounds the split amount inclusively. When Signed is false
// the absolute amount is compared.
type AmountWindow struct {
	Min    *decimal.Decimal
	Max    *decimal.Decimal
	Signed bool
}

// DedupMode controls whether several matching splits of one transaction
// collapse to a single row.
type DedupMode int

const (
	DedupSplit DedupMode = iota
	DedupTx
)

// ParseDedupMode parses "split" or "tx".
func ParseDedupMode(s string) (DedupMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "split", "":
		return DedupSplit, nil
	case "tx", "transaction":
		return DedupTx, nil
	}
	return DedupSplit, fmt.Errorf("invalid dedupe mode %q (want tx or split)", s)
}

func (m DedupMode) String() string {
	if m == DedupTx {
		return "tx"
	}
	return "split"
}

// SortField represents the field to sort result rows by.
type SortField int

const (
	SortByDate SortField = iota
	SortByAmount
	SortByAccount
	SortByDescription
)

func (f SortField) String() string {
	switch f {
	case SortByDate:
		return "date"
	case SortByAmount:
		return "amount"
	case SortByAccount:
		return "account"
	case SortByDescription:
		return "description"
	default:
		return "unknown"
	}
}

// ParseSortField parses a sort key name. Empty means date.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "date", "":
		return SortByDate, nil
	case "amount":
		return SortByAmount, nil
	case "account":
		return SortByAccount, nil
	case "description", "desc":
		return SortByDescription, nil
	}
	return SortByDate, fmt.Errorf("invalid sort key %q (want date, amount, account or description)", s)
}

// SortDirection represents ascending or descending sort order.
type SortDirection int

const (
	SortAsc SortDirection = iota
	SortDesc
)

// CurrencyOptions controls display currency normalization.
type CurrencyOptions struct {
	Mode         currency.Mode
	Base         string
	LookbackDays int
	AlsoOriginal bool
}

// Query is one search request. It is built once per invocation and
// treated as immutable.
type Query struct {
	Account AccountSelector

	// Restrict, when set, keeps only splits whose account is in the
	// resolved set, on top of the candidate accounts.
	Restrict *AccountSelector

	Text            TextSelector
	Dates           DateWindow
	Amount          AmountWindow
	Dedup           DedupMode
	FullTransaction bool

	Currency CurrencyOptions

	SortField     SortField
	SortDirection SortDirection

	// Pagination, applied after sorting. Limit 0 means no limit.
	Offset int
	Limit  int
}

// EffectiveDedup returns the dedup mode in force; full-transaction
// expansion always deduplicates per transaction.
func (q Query) EffectiveDedup() DedupMode {
	if q.FullTransaction {
		return DedupTx
	}
	return q.Dedup
}

// ResultRow is a display-ready projection of one split.
type ResultRow struct {
	Date        time.Time
	Description string
	Account     string // full name
	Memo        string
	Notes       string

	Amount   decimal.Decimal
	Currency string
	FXRate   *decimal.Decimal // nil unless converted

	// Set only when AlsoOriginal is requested and a conversion occurred.
	OriginalAmount   *decimal.Decimal
	OriginalCurrency string

	TxGUID    string
	SplitGUID string
}

// TransactionRow is a transaction header with all of its splits.
type TransactionRow struct {
	TxGUID      string
	Date        time.Time
	Description string
	Notes       string
	Splits      []ResultRow
}

// AccountRow describes one account in an accounts listing.
type AccountRow struct {
	FullName string
	Name     string
	Type     string
	Currency string
	GUID     string // empty unless requested
	Depth    int
	Matched  bool // false for ancestors added by pruning
}

// Outcome is the process-style result of a query.
type Outcome int

const (
	OutcomeResults   Outcome = 0
	OutcomeNoMatches Outcome = 1
	OutcomeError     Outcome = 2
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResults:
		return "results"
	case OutcomeNoMatches:
		return "no matches"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}
