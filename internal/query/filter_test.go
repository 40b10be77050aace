package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/wesm/gcg/internal/book"
	"github.com/wesm/gcg/internal/testutil"
	"github.com/wesm/gcg/internal/testutil/ledgertest"
	"github.com/wesm/gcg/internal/testutil/ptr"
)

func TestFilter_AmountIsSignInsensitive(t *testing.T) {
	b := ledgertest.New(t)
	b.Account("Assets:Cash", "CASH", "EUR")
	b.Tx("2024-01-05", "seven", "EUR", ledgertest.L("Assets:Cash", "-7"))
	b.Tx("2024-01-06", "three", "EUR", ledgertest.L("Assets:Cash", "-3"))
	st := openStore(t, b)
	tree := st.Accounts()
	cash := []int{accountIndex(t, tree, "Assets:Cash")}

	tests := []struct {
		name   string
		window AmountWindow
		want   []string
	}{
		{"absolute min", AmountWindow{Min: ptr.Decimal("5")}, []string{"seven"}},
		{"absolute max", AmountWindow{Max: ptr.Decimal("5")}, []string{"three"}},
		{"absolute bounds inclusive", AmountWindow{Min: ptr.Decimal("3"), Max: ptr.Decimal("7")}, []string{"seven", "three"}},
		{"signed min", AmountWindow{Min: ptr.Decimal("5"), Signed: true}, []string{}},
		{"signed range", AmountWindow{Min: ptr.Decimal("-7"), Max: ptr.Decimal("-5"), Signed: true}, []string{"seven"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filter(context.Background(), st, tree, cash, Query{Amount: tt.window})
			testutil.MustNoErr(t, err, "Filter")
			testutil.AssertStrings(t, descriptions(got), tt.want...)
		})
	}
}

func TestFilter_DateWindowBoundaries(t *testing.T) {
	b := ledgertest.New(t)
	b.Account("Assets:Cash", "CASH", "EUR")
	b.Tx("2024-02-29", "before window", "EUR", ledgertest.L("Assets:Cash", "1"))
	b.Tx("2024-03-01", "on after", "EUR", ledgertest.L("Assets:Cash", "1"))
	b.Tx("2024-03-31", "inside", "EUR", ledgertest.L("Assets:Cash", "1"))
	b.Tx("2024-04-01", "on before", "EUR", ledgertest.L("Assets:Cash", "1"))
	st := openStore(t, b)
	tree := st.Accounts()

	after, before := ptr.Date(2024, 3, 1), ptr.Date(2024, 4, 1)
	q := Query{Dates: DateWindow{After: &after, Before: &before}}
	got, err := Filter(context.Background(), st, tree, allAccounts(tree), q)
	testutil.MustNoErr(t, err, "Filter")
	testutil.AssertStrings(t, descriptions(got), "on after", "inside")

	q = Query{Dates: DateWindow{Before: &before}}
	got, err = Filter(context.Background(), st, tree, allAccounts(tree), q)
	testutil.MustNoErr(t, err, "Filter")
	testutil.AssertStrings(t, descriptions(got), "before window", "on after", "inside")
}

// coffeeBook has one transaction with three splits, two of whose memos
// mention coffee.
func coffeeBook(t *testing.T) (*book.Store, string) {
	t.Helper()
	b := ledgertest.New(t)
	b.Account("Assets:Cash", "CASH", "EUR")
	b.Account("Expenses:Food", "EXPENSE", "EUR")
	b.Account("Expenses:Office", "EXPENSE", "EUR")
	tx := b.Tx("2024-06-01", "Market", "EUR",
		ledgertest.Leg{Account: "Assets:Cash", Amount: "-12", Memo: "cash"},
		ledgertest.Leg{Account: "Expenses:Food", Amount: "8", Memo: "coffee beans"},
		ledgertest.Leg{Account: "Expenses:Office", Amount: "4", Memo: "coffee filters"},
	)
	return openStore(t, b), tx
}

func TestFilter_Dedup(t *testing.T) {
	st, tx := coffeeBook(t)
	tree := st.Accounts()
	text := TextSelector{Pattern: "coffee"}

	tests := []struct {
		name string
		q    Query
		want int
	}{
		{"per split keeps all", Query{Text: text, Dedup: DedupSplit}, 2},
		{"per transaction keeps one", Query{Text: text, Dedup: DedupTx}, 1},
		{"full transaction forces per transaction", Query{Text: text, Dedup: DedupSplit, FullTransaction: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filter(context.Background(), st, tree, allAccounts(tree), tt.q)
			testutil.MustNoErr(t, err, "Filter")
			if len(got) != tt.want {
				t.Fatalf("got %d rows, want %d", len(got), tt.want)
			}
			if got[0].Split.Tx.GUID != tx {
				t.Errorf("tx = %s, want %s", got[0].Split.Tx.GUID, tx)
			}
			// First match in iteration order wins.
			if got[0].Split.Memo != "coffee beans" {
				t.Errorf("first row memo = %q, want coffee beans", got[0].Split.Memo)
			}
		})
	}
}

func TestFilter_TextFields(t *testing.T) {
	b := ledgertest.New(t)
	tx := b.SeedOffice()
	b.SetNotes(tx, "Invoice 2024-117 from Staples")
	st := openStore(t, b)
	tree := st.Accounts()

	tests := []struct {
		name string
		text TextSelector
		want int
	}{
		{"description", TextSelector{Pattern: "supplies"}, 2},
		{"memo", TextSelector{Pattern: "toner"}, 1},
		{"notes", TextSelector{Pattern: "staples"}, 2},
		{"notes excluded by fields", TextSelector{Pattern: "staples", Fields: []Field{FieldDescription, FieldMemo}}, 0},
		{"memo only", TextSelector{Pattern: "supplies", Fields: []Field{FieldMemo}}, 0},
		{"regex", TextSelector{Pattern: `^office\s+sup`, Regex: true}, 2},
		{"case-sensitive regex", TextSelector{Pattern: "SUPPLIES", Regex: true, CaseSensitive: true}, 0},
		{"fields joined with space", TextSelector{Pattern: "Supplies card"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filter(context.Background(), st, tree, allAccounts(tree), Query{Text: tt.text})
			testutil.MustNoErr(t, err, "Filter")
			if len(got) != tt.want {
				t.Fatalf("got %d rows, want %d", len(got), tt.want)
			}
			for _, m := range got {
				if m.Notes != "Invoice 2024-117 from Staples" {
					t.Errorf("Notes = %q", m.Notes)
				}
			}
		})
	}
}

func TestFilter_InvalidTextPattern(t *testing.T) {
	st := officeStore(t)
	_, err := Filter(context.Background(), st, st.Accounts(), nil, Query{Text: TextSelector{Pattern: "[", Regex: true}})
	if !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("error = %v, want ErrInvalidPattern", err)
	}
}

func TestFilter_Restrict(t *testing.T) {
	st, _ := coffeeBook(t)
	tree := st.Accounts()
	q := Query{Restrict: &AccountSelector{Pattern: "Expenses:Office"}}
	got, err := Filter(context.Background(), st, tree, allAccounts(tree), q)
	testutil.MustNoErr(t, err, "Filter")
	if len(got) != 1 || got[0].Account.FullName != "Expenses:Office" {
		t.Fatalf("got %d rows, want only Expenses:Office", len(got))
	}
}

func TestFilter_OrderMatchesSequentialScan(t *testing.T) {
	b := ledgertest.New(t)
	var accounts []string
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("Expenses:A%02d", i)
		accounts = append(accounts, name)
		b.Account(name, "EXPENSE", "EUR")
	}
	for day := 1; day <= 5; day++ {
		for i := len(accounts) - 1; i >= 0; i-- {
			b.Tx(fmt.Sprintf("2024-01-%02d", day), fmt.Sprintf("%s/%d", accounts[i], day), "EUR",
				ledgertest.L(accounts[i], "1"))
		}
	}
	st := openStore(t, b)
	tree := st.Accounts()

	var candidates []int
	var want []string
	for _, name := range accounts {
		candidates = append(candidates, accountIndex(t, tree, name))
		for day := 1; day <= 5; day++ {
			want = append(want, fmt.Sprintf("%s/%d", name, day))
		}
	}
	for run := 0; run < 5; run++ {
		got, err := Filter(context.Background(), st, tree, candidates, Query{})
		testutil.MustNoErr(t, err, "Filter")
		testutil.AssertStrings(t, descriptions(got), want...)
	}
}

// brokenNotes fails every notes read.
type brokenNotes struct{ *book.Store }

func (brokenNotes) Notes(context.Context, string) (string, error) {
	return "", errors.New("slot value is not a string")
}

func TestFilter_NotesFailureIsEmptyNotes(t *testing.T) {
	b := ledgertest.New(t)
	tx := b.SeedOffice()
	b.SetNotes(tx, "staples")
	st := openStore(t, b)
	tree := st.Accounts()
	src := brokenNotes{st}

	got, err := Filter(context.Background(), src, tree, allAccounts(tree), Query{Text: TextSelector{Pattern: "staples"}})
	testutil.MustNoErr(t, err, "Filter")
	if len(got) != 0 {
		t.Errorf("got %d rows matching unreadable notes, want 0", len(got))
	}

	got, err = Filter(context.Background(), src, tree, allAccounts(tree), Query{Text: TextSelector{Pattern: "toner"}})
	testutil.MustNoErr(t, err, "Filter")
	if len(got) != 1 || got[0].Notes != "" {
		t.Fatalf("got %+v, want one row with empty notes", got)
	}
}

func TestExpandTransactions(t *testing.T) {
	st, tx := coffeeBook(t)
	tree := st.Accounts()
	ctx := context.Background()

	// Per-split matches reach the same transaction from two accounts.
	matches, err := Filter(ctx, st, tree, allAccounts(tree), Query{Text: TextSelector{Pattern: "coffee"}})
	testutil.MustNoErr(t, err, "Filter")
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}

	expanded, err := ExpandTransactions(ctx, st, tree, matches)
	testutil.MustNoErr(t, err, "ExpandTransactions")
	if len(expanded) != 1 {
		t.Fatalf("got %d transactions, want 1", len(expanded))
	}
	tm := expanded[0]
	if tm.Tx.GUID != tx {
		t.Errorf("tx = %s, want %s", tm.Tx.GUID, tx)
	}
	var memos []string
	for _, m := range tm.Splits {
		memos = append(memos, m.Split.Memo)
	}
	testutil.AssertStrings(t, memos, "cash", "coffee beans", "coffee filters")
}

func TestSearchFields(t *testing.T) {
	none := book.Capabilities{}
	slots := book.Capabilities{HasSlotsNotes: true}

	testutil.AssertEqualSlices(t, SearchFields(nil, slots), FieldDescription, FieldMemo, FieldNotes)
	testutil.AssertEqualSlices(t, SearchFields(nil, none), FieldDescription, FieldMemo)
	testutil.AssertEqualSlices(t, SearchFields([]Field{FieldNotes}, none))
}

func TestParseFields(t *testing.T) {
	got, err := ParseFields("desc, memo,desc")
	testutil.MustNoErr(t, err, "ParseFields")
	testutil.AssertEqualSlices(t, got, FieldDescription, FieldMemo)

	if _, err := ParseFields("body"); err == nil {
		t.Error("ParseFields(body) error = nil")
	}
	if _, err := ParseFields(","); err == nil {
		t.Error("ParseFields(,) error = nil")
	}
}
