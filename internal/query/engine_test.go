package query

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/wesm/gcg/internal/currency"
	"github.com/wesm/gcg/internal/testutil"
	"github.com/wesm/gcg/internal/testutil/ledgertest"
	"github.com/wesm/gcg/internal/testutil/ptr"
)

func march2024() DateWindow {
	after, before := ptr.Date(2024, 1, 1), ptr.Date(2024, 4, 1)
	return DateWindow{After: &after, Before: &before}
}

func TestEngine_OfficeLedger(t *testing.T) {
	e := NewEngine(officeStore(t), nil)

	res, err := e.Ledger(context.Background(), Query{
		Account:  AccountSelector{Pattern: "Office", IncludeSubtree: true},
		Dates:    march2024(),
		Currency: CurrencyOptions{Mode: currency.ModeAuto, Base: "EUR", LookbackDays: 7},
	})
	testutil.MustNoErr(t, err, "Ledger")
	if res.Outcome != OutcomeResults {
		t.Fatalf("Outcome = %v, want results", res.Outcome)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(res.Rows))
	}
	r := res.Rows[0]
	testutil.AssertDecimal(t, r.Amount, "50.00")
	if r.Currency != "EUR" || r.FXRate != nil || r.Account != "Expenses:Office" {
		t.Errorf("row = %+v", r)
	}
	if res.DisplayCurrency != "" {
		t.Errorf("DisplayCurrency = %q, want none for a single-currency book", res.DisplayCurrency)
	}
}

func TestEngine_OfficeGrep(t *testing.T) {
	e := NewEngine(officeStore(t), nil)
	ctx := context.Background()

	res, err := e.Grep(ctx, Query{Text: TextSelector{Pattern: "supplies"}, Dedup: DedupTx})
	testutil.MustNoErr(t, err, "Grep")
	if res.Outcome != OutcomeResults || len(res.Rows) != 1 {
		t.Fatalf("supplies: outcome %v, %d rows; want results, 1 row", res.Outcome, len(res.Rows))
	}

	res, err = e.Grep(ctx, Query{Text: TextSelector{Pattern: "SUPPLIES", Regex: true, CaseSensitive: true}})
	testutil.MustNoErr(t, err, "Grep")
	if res.Outcome != OutcomeNoMatches || len(res.Rows) != 0 {
		t.Fatalf("SUPPLIES: outcome %v, %d rows; want no matches", res.Outcome, len(res.Rows))
	}
}

func TestEngine_GrepWarnsWhenNotesUnsupported(t *testing.T) {
	e := NewEngine(officeStore(t), nil)
	res, err := e.Grep(context.Background(), Query{Text: TextSelector{Pattern: "toner"}})
	testutil.MustNoErr(t, err, "Grep")
	if len(res.Warnings) != 1 {
		t.Fatalf("Warnings = %q, want one notes warning", res.Warnings)
	}
	if res.NotesIncluded {
		t.Error("NotesIncluded = true for a book without notes")
	}

	res, err = e.Grep(context.Background(), Query{Text: TextSelector{Pattern: "toner", Fields: []Field{FieldMemo}}})
	testutil.MustNoErr(t, err, "Grep")
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %q, want none when notes are not requested", res.Warnings)
	}
}

func TestEngine_GrepAccountRestriction(t *testing.T) {
	b := ledgertest.New(t)
	b.SeedMultiCurrency()
	e := NewEngine(openStore(t, b), nil)

	res, err := e.Grep(context.Background(), Query{
		Account:  AccountSelector{Pattern: "Travel", IncludeSubtree: true},
		Text:     TextSelector{Pattern: "boston"},
		Currency: CurrencyOptions{Mode: currency.ModeAccount},
	})
	testutil.MustNoErr(t, err, "Grep")
	if len(res.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(res.Rows))
	}
	for _, r := range res.Rows {
		if r.Account != "Expenses:Travel" {
			t.Errorf("row account = %q", r.Account)
		}
	}

	res, err = e.Grep(context.Background(), Query{Account: AccountSelector{Pattern: "Nowhere"}, Text: TextSelector{Pattern: "x"}})
	testutil.MustNoErr(t, err, "Grep")
	if res.Outcome != OutcomeNoMatches || len(res.Warnings) != 1 {
		t.Errorf("unknown account: outcome %v warnings %q", res.Outcome, res.Warnings)
	}
}

func TestEngine_MultiCurrencyAuto(t *testing.T) {
	b := ledgertest.New(t)
	b.SeedMultiCurrency()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := NewEngine(openStore(t, b), logger)

	res, err := e.Grep(context.Background(), Query{
		Dates:    march2024(),
		Currency: CurrencyOptions{Mode: currency.ModeAuto, Base: "EUR", LookbackDays: 7, AlsoOriginal: true},
	})
	testutil.MustNoErr(t, err, "Grep")
	testutil.AssertContainsAll(t, logs.String(), []string{"converted results", "target=EUR", "rate_lookups="})
	if res.DisplayCurrency != "EUR" {
		t.Fatalf("DisplayCurrency = %q, want EUR", res.DisplayCurrency)
	}
	if len(res.Rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(res.Rows))
	}
	for _, r := range res.Rows {
		if r.Currency != "EUR" {
			t.Errorf("%s: currency %s, want EUR", r.Account, r.Currency)
		}
		if r.Account == "Assets:Bank:US Checking" {
			if r.FXRate == nil {
				t.Fatalf("USD row has no fx rate")
			}
			testutil.AssertDecimal(t, *r.FXRate, "0.90")
			testutil.AssertDecimal(t, r.Amount, "180")
			if r.OriginalAmount == nil || r.OriginalCurrency != "USD" {
				t.Errorf("USD row original = %v %q", r.OriginalAmount, r.OriginalCurrency)
			}
		} else if r.FXRate != nil {
			t.Errorf("%s: fx rate set on a native EUR row", r.Account)
		}
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %q, want none", res.Warnings)
	}
}

func TestEngine_SkippedConversionWarning(t *testing.T) {
	b := ledgertest.New(t)
	b.SeedMultiCurrency()
	e := NewEngine(openStore(t, b), nil)

	res, err := e.Ledger(context.Background(), Query{
		Account:  AccountSelector{Pattern: "US Checking"},
		Currency: CurrencyOptions{Mode: currency.ModeBase, Base: "EUR", LookbackDays: 7},
	})
	testutil.MustNoErr(t, err, "Ledger")
	if len(res.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(res.Rows))
	}
	// The hotel on 2024-05-20 has no USD price within 7 days.
	hotel := res.Rows[1]
	if hotel.Description != "Hotel Boston" || hotel.Currency != "USD" || hotel.FXRate != nil {
		t.Errorf("hotel row = %+v, want unconverted USD", hotel)
	}
	testutil.AssertStrings(t, res.Warnings, "conversion skipped for USD→EUR: no rate within 7 days")
	if res.Outcome != OutcomeResults {
		t.Errorf("Outcome = %v, want results", res.Outcome)
	}
}

func TestEngine_InvalidPatternBeforeStoreAccess(t *testing.T) {
	st := officeStore(t)
	e := NewEngine(st, nil)
	testutil.MustNoErr(t, st.Close(), "Close")

	_, err := e.Grep(context.Background(), Query{Text: TextSelector{Pattern: "(", Regex: true}})
	if !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("Grep error = %v, want ErrInvalidPattern", err)
	}
	_, err = e.Ledger(context.Background(), Query{Account: AccountSelector{Pattern: "*", Regex: true}})
	if !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("Ledger error = %v, want ErrInvalidPattern", err)
	}
}

func TestEngine_FullTransaction(t *testing.T) {
	st, tx := coffeeBook(t)
	e := NewEngine(st, nil)

	res, err := e.Grep(context.Background(), Query{Text: TextSelector{Pattern: "coffee"}, FullTransaction: true})
	testutil.MustNoErr(t, err, "Grep")
	if len(res.Rows) != 0 || len(res.Transactions) != 1 {
		t.Fatalf("rows %d, transactions %d; want 0 and 1", len(res.Rows), len(res.Transactions))
	}
	if res.Transactions[0].TxGUID != tx || len(res.Transactions[0].Splits) != 3 {
		t.Errorf("transaction = %+v", res.Transactions[0])
	}
}

func TestEngine_TxAndSplit(t *testing.T) {
	b := ledgertest.New(t)
	tx := b.SeedOffice()
	b.SetNotes(tx, "receipt in folder 3")
	st := openStore(t, b)
	e := NewEngine(st, nil)
	ctx := context.Background()

	res, err := e.Tx(ctx, tx)
	testutil.MustNoErr(t, err, "Tx")
	if len(res.Transactions) != 1 {
		t.Fatalf("got %d transactions", len(res.Transactions))
	}
	tr := res.Transactions[0]
	if tr.Notes != "receipt in folder 3" || len(tr.Splits) != 2 {
		t.Fatalf("transaction = %+v", tr)
	}
	testutil.AssertDecimal(t, tr.Splits[0].Amount, "-50")
	testutil.AssertDecimal(t, tr.Splits[1].Amount, "50")

	res, err = e.Split(ctx, tr.Splits[0].SplitGUID)
	testutil.MustNoErr(t, err, "Split")
	if len(res.Rows) != 1 || res.Rows[0].Account != "Assets:Bank:Checking" || res.Rows[0].Notes != "receipt in folder 3" {
		t.Fatalf("split rows = %+v", res.Rows)
	}

	for _, lookup := range []func(context.Context, string) (*Result, error){e.Tx, e.Split} {
		res, err = lookup(ctx, "ffffffffffffffffffffffffffffffff")
		testutil.MustNoErr(t, err, "lookup missing")
		if res.Outcome != OutcomeNoMatches || len(res.Warnings) != 1 {
			t.Errorf("missing guid: outcome %v, warnings %q", res.Outcome, res.Warnings)
		}
	}
}

func TestEngine_Accounts(t *testing.T) {
	e := NewEngine(officeStore(t), nil)
	ctx := context.Background()

	res, err := e.Accounts(ctx, AccountSelector{Pattern: "Assets", IncludeSubtree: true}, AccountListOptions{}, 1, 1)
	testutil.MustNoErr(t, err, "Accounts")
	if len(res.Accounts) != 1 || res.Accounts[0].FullName != "Assets:Bank" {
		t.Errorf("Accounts = %+v, want only Assets:Bank", res.Accounts)
	}

	res, err = e.Accounts(ctx, AccountSelector{Pattern: "Income"}, AccountListOptions{}, 0, 0)
	testutil.MustNoErr(t, err, "Accounts")
	if res.Outcome != OutcomeNoMatches {
		t.Errorf("Outcome = %v, want no matches", res.Outcome)
	}
}
