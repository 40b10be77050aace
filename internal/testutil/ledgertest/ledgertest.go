// Package ledgertest builds GnuCash SQLite books on disk for tests.
// Books are written through a separate read-write connection; the code
// under test opens them read-only like a real book.
package ledgertest

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/wesm/gcg/internal/book"
)

// Book is a GnuCash book under construction.
type Book struct {
	DB   *sql.DB
	T    testing.TB
	Path string

	rootGUID    string
	commodities map[string]string // mnemonic -> guid
	accounts    map[string]string // full name -> guid
	accountCur  map[string]string // full name -> mnemonic
	notesColumn bool
	fileName    string
	seq         int
}

// Option customizes New.
type Option func(*Book)

// WithNotesColumn stores notes in a transactions.notes column instead of
// the slots table.
func WithNotesColumn() Option {
	return func(b *Book) { b.notesColumn = true }
}

// WithFileName names the book file, which defaults to test.gnucash.
func WithFileName(name string) Option {
	return func(b *Book) { b.fileName = name }
}

// New creates an empty book (root account, book row, EUR commodity) in a
// temporary directory.
func New(t testing.TB, opts ...Option) *Book {
	t.Helper()

	b := &Book{
		T:           t,
		fileName:    "test.gnucash",
		commodities: make(map[string]string),
		accounts:    make(map[string]string),
		accountCur:  make(map[string]string),
	}
	for _, o := range opts {
		o(b)
	}

	b.Path = filepath.Join(t.TempDir(), b.fileName)
	dsn, err := book.FileURI(b.Path, "mode=rwc")
	if err != nil {
		t.Fatalf("fixture book URI: %v", err)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open fixture book: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	b.DB = db

	if _, err := db.Exec(book.SchemaSQL); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	if b.notesColumn {
		b.exec(`ALTER TABLE transactions ADD COLUMN notes text(2048)`)
	}

	eur := b.Commodity("EUR")
	b.rootGUID = b.NewGUID()
	b.exec(`INSERT INTO accounts (guid, name, account_type, commodity_guid, commodity_scu, non_std_scu, parent_guid)
		VALUES (?, 'Root Account', 'ROOT', ?, 100, 0, NULL)`, b.rootGUID, eur)
	b.exec(`INSERT INTO accounts (guid, name, account_type, commodity_guid, commodity_scu, non_std_scu, parent_guid)
		VALUES (?, 'Template Root', 'ROOT', NULL, 0, 0, NULL)`, b.NewGUID())
	b.exec(`INSERT INTO books (guid, root_account_guid, root_template_guid) VALUES (?, ?, ?)`,
		b.NewGUID(), b.rootGUID, b.NewGUID())
	return b
}

// NewGUID returns a fresh deterministic 32-hex-digit GUID.
func (b *Book) NewGUID() string {
	b.seq++
	return fmt.Sprintf("%032x", b.seq)
}

func (b *Book) exec(query string, args ...any) {
	b.T.Helper()
	if _, err := b.DB.Exec(query, args...); err != nil {
		b.T.Fatalf("exec %q: %v", strings.TrimSpace(query), err)
	}
}

// Commodity returns the GUID of a commodity, creating it on first use.
// Three-letter upper-case mnemonics go into the CURRENCY namespace.
func (b *Book) Commodity(mnemonic string) string {
	b.T.Helper()
	if guid, ok := b.commodities[mnemonic]; ok {
		return guid
	}
	ns := "NASDAQ"
	if len(mnemonic) == 3 && strings.ToUpper(mnemonic) == mnemonic {
		ns = "CURRENCY"
	}
	guid := b.NewGUID()
	b.exec(`INSERT INTO commodities (guid, namespace, mnemonic, fullname, fraction, quote_flag)
		VALUES (?, ?, ?, ?, 100, 0)`, guid, ns, mnemonic, mnemonic)
	b.commodities[mnemonic] = guid
	return guid
}

// Account creates the account with the given full name, creating missing
// parents with the same type and commodity, and returns its GUID.
func (b *Book) Account(fullName, accountType, commodity string) string {
	b.T.Helper()
	if guid, ok := b.accounts[fullName]; ok {
		return guid
	}
	parent := b.rootGUID
	name := fullName
	if i := strings.LastIndex(fullName, ":"); i >= 0 {
		parent = b.Account(fullName[:i], accountType, commodity)
		name = fullName[i+1:]
	}
	guid := b.NewGUID()
	b.exec(`INSERT INTO accounts (guid, name, account_type, commodity_guid, commodity_scu, non_std_scu, parent_guid, hidden, placeholder)
		VALUES (?, ?, ?, ?, 100, 0, ?, 0, 0)`, guid, name, accountType, b.Commodity(commodity), parent)
	b.accounts[fullName] = guid
	b.accountCur[fullName] = commodity
	return guid
}

// AccountGUID returns the GUID of an account created earlier.
func (b *Book) AccountGUID(fullName string) string {
	b.T.Helper()
	guid, ok := b.accounts[fullName]
	if !ok {
		b.T.Fatalf("unknown fixture account %q", fullName)
	}
	return guid
}

// Leg describes one split of a transaction.
type Leg struct {
	Account string // full name, must exist
	Amount  string // decimal, in the account commodity
	Value   string // decimal, in the transaction currency; defaults to Amount
	Memo    string
	GUID    string // optional
}

// L is shorthand for a Leg with only account and amount.
func L(account, amount string) Leg { return Leg{Account: account, Amount: amount} }

// Tx inserts a transaction in currency cur posted on date (YYYY-MM-DD)
// and returns its GUID. Legs are inserted in order.
func (b *Book) Tx(date, description, cur string, legs ...Leg) string {
	b.T.Helper()
	guid := b.NewGUID()
	b.exec(`INSERT INTO transactions (guid, currency_guid, num, post_date, enter_date, description)
		VALUES (?, ?, '', ?, ?, ?)`, guid, b.Commodity(cur), date+" 10:59:00", date+" 10:59:00", description)
	for _, leg := range legs {
		b.AddSplit(guid, leg)
	}
	return guid
}

// AddSplit inserts one split into an existing transaction and returns its GUID.
func (b *Book) AddSplit(txGUID string, leg Leg) string {
	b.T.Helper()
	splitGUID := leg.GUID
	if splitGUID == "" {
		splitGUID = b.NewGUID()
	}
	value := leg.Value
	if value == "" {
		value = leg.Amount
	}
	qNum, qDen := b.numDenom(leg.Amount)
	vNum, vDen := b.numDenom(value)
	b.exec(`INSERT INTO splits (guid, tx_guid, account_guid, memo, action, reconcile_state,
			value_num, value_denom, quantity_num, quantity_denom)
		VALUES (?, ?, ?, ?, '', 'n', ?, ?, ?, ?)`,
		splitGUID, txGUID, b.AccountGUID(leg.Account), leg.Memo, vNum, vDen, qNum, qDen)
	return splitGUID
}

// numDenom converts a decimal string to a GnuCash num/denom pair with at
// least two decimal places.
func (b *Book) numDenom(s string) (int64, int64) {
	b.T.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		b.T.Fatalf("bad fixture amount %q: %v", s, err)
	}
	scale := int32(2)
	if -d.Exponent() > scale {
		scale = -d.Exponent()
	}
	denom := decimal.New(1, scale).IntPart()
	return d.Shift(scale).IntPart(), denom
}

// Price records that one unit of commodity is worth value units of cur on date.
func (b *Book) Price(commodity, cur, date, value string) {
	b.T.Helper()
	num, denom := b.numDenom(value)
	b.exec(`INSERT INTO prices (guid, commodity_guid, currency_guid, date, source, type, value_num, value_denom)
		VALUES (?, ?, ?, ?, 'user:price', 'last', ?, ?)`,
		b.NewGUID(), b.Commodity(commodity), b.Commodity(cur), date+" 00:00:00", num, denom)
}

// SetNotes attaches notes to a transaction where this book keeps them.
func (b *Book) SetNotes(txGUID, notes string) {
	b.T.Helper()
	if b.notesColumn {
		b.exec(`UPDATE transactions SET notes = ? WHERE guid = ?`, notes, txGUID)
		return
	}
	b.exec(`INSERT INTO slots (obj_guid, name, slot_type, string_val) VALUES (?, 'notes', 4, ?)`, txGUID, notes)
}

// Lock simulates GnuCash holding the book open.
func (b *Book) Lock() {
	b.T.Helper()
	b.exec(`INSERT INTO gnclock (Hostname, PID) VALUES ('testhost', 4242)`)
}

// SeedOffice creates the two-account EUR book used across tests: one
// "Office Supplies" transaction on 2024-03-01 moving 50.00 from
// Assets:Bank:Checking to Expenses:Office. It returns the transaction GUID.
func (b *Book) SeedOffice() string {
	b.T.Helper()
	b.Account("Assets:Bank:Checking", "BANK", "EUR")
	b.Account("Expenses:Office", "EXPENSE", "EUR")
	return b.Tx("2024-03-01", "Office Supplies", "EUR",
		Leg{Account: "Assets:Bank:Checking", Amount: "-50.00", Memo: "card"},
		Leg{Account: "Expenses:Office", Amount: "50.00", Memo: "paper and toner"},
	)
}

// SeedMultiCurrency adds a USD checking account with two transactions and
// USD→EUR prices on top of SeedOffice.
func (b *Book) SeedMultiCurrency() {
	b.T.Helper()
	b.SeedOffice()
	b.Account("Assets:Bank:US Checking", "BANK", "USD")
	b.Account("Expenses:Travel", "EXPENSE", "EUR")
	b.Tx("2024-03-10", "Flight to Boston", "USD",
		Leg{Account: "Assets:Bank:US Checking", Amount: "-200.00"},
		Leg{Account: "Expenses:Travel", Amount: "180.00", Value: "200.00"},
	)
	b.Tx("2024-05-20", "Hotel Boston", "USD",
		Leg{Account: "Assets:Bank:US Checking", Amount: "-100.00"},
		Leg{Account: "Expenses:Travel", Amount: "92.00", Value: "100.00"},
	)
	b.Price("USD", "EUR", "2024-03-08", "0.90")
	b.Price("USD", "EUR", "2024-05-01", "0.92")
}
