package book

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account types excluded from whole-book searches.
const (
	TypeRoot    = "ROOT"
	TypeTrading = "TRADING"
)

// Account is one node of the chart of accounts.
// Parent and Children are indices into the owning AccountTree.
type Account struct {
	Index       int
	GUID        string
	Name        string // leaf name
	FullName    string // colon-delimited path, root excluded
	Type        string // ASSET, BANK, EXPENSE, ...
	Commodity   string // mnemonic, e.g. EUR or AAPL; empty if unset
	Parent      int    // -1 for top-level accounts
	Children    []int  // sorted by leaf name
	Depth       int    // 0 for top-level accounts
	Hidden      bool
	Placeholder bool
}

// AccountTree is an arena of accounts in depth-first, name-sorted order.
type AccountTree struct {
	accounts []Account
	byGUID   map[string]int
	roots    []int
}

// Len returns the number of accounts.
func (t *AccountTree) Len() int { return len(t.accounts) }

// At returns the account at index i.
func (t *AccountTree) At(i int) *Account { return &t.accounts[i] }

// Index returns the arena index of the account with the given GUID.
func (t *AccountTree) Index(guid string) (int, bool) {
	i, ok := t.byGUID[guid]
	return i, ok
}

// Roots returns the indices of the top-level accounts.
func (t *AccountTree) Roots() []int { return t.roots }

// Descendants returns every descendant of i in depth-first order, excluding i.
func (t *AccountTree) Descendants(i int) []int {
	var out []int
	var walk func(int)
	walk = func(n int) {
		for _, c := range t.accounts[n].Children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(i)
	return out
}

// Ancestors returns the ancestors of i from its parent up to the top level.
func (t *AccountTree) Ancestors(i int) []int {
	var out []int
	for p := t.accounts[i].Parent; p >= 0; p = t.accounts[p].Parent {
		out = append(out, p)
	}
	return out
}

// Transaction is a transaction header. Splits reference it by pointer;
// the Store returns the same pointer for the same GUID.
type Transaction struct {
	GUID        string
	PostDate    time.Time // UTC midnight of the posting day
	Description string
	Currency    string
}

// Split is one leg of a transaction.
type Split struct {
	GUID        string
	Tx          *Transaction
	Account     int // arena index, -1 when the account is outside the tree
	AccountGUID string
	Memo        string
	Value       decimal.Decimal // in the transaction currency
	Quantity    decimal.Decimal // in the account commodity
}

// Capabilities reports where the book stores transaction notes.
type Capabilities struct {
	HasNotesColumn bool `json:"has_notes_column"`
	HasSlotsNotes  bool `json:"has_slots_notes"`
}

// NotesSupported reports whether notes can be read at all.
func (c Capabilities) NotesSupported() bool {
	return c.HasNotesColumn || c.HasSlotsNotes
}

// Info is the book metadata gathered once at open time.
type Info struct {
	Path             string       `json:"path"`
	DefaultCurrency  string       `json:"default_currency"`
	AccountCount     int          `json:"account_count"`
	TransactionCount int64        `json:"transaction_count"`
	Capabilities     Capabilities `json:"capabilities"`
}
