package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wesm/gcg/internal/book"
	"github.com/wesm/gcg/internal/testutil"
	"github.com/wesm/gcg/internal/testutil/ledgertest"
)

func openBook(t *testing.T, b *ledgertest.Book) *book.Store {
	t.Helper()
	st, err := book.Open(context.Background(), b.Path, book.Options{})
	testutil.MustNoErr(t, err, "book.Open")
	t.Cleanup(func() { st.Close() })
	return st
}

func newManager(t *testing.T) (*Manager, *book.Store, *ledgertest.Book) {
	t.Helper()
	b := ledgertest.New(t)
	tx := b.SeedOffice()
	b.SetNotes(tx, "kept for audit")
	st := openBook(t, b)
	return New(filepath.Join(t.TempDir(), "gcg", "cache.db"), b.Path), st, b
}

func TestBuildTwiceIsIdempotent(t *testing.T) {
	m, st, _ := newManager(t)
	ctx := context.Background()

	res, err := m.Build(ctx, st, false)
	testutil.MustNoErr(t, err, "first Build")
	if res.Skipped {
		t.Fatal("first Build skipped")
	}
	if res.Meta.SplitCount != 2 {
		t.Errorf("SplitCount = %d, want 2", res.Meta.SplitCount)
	}
	first, err := m.Status()
	testutil.MustNoErr(t, err, "Status")

	res, err = m.Build(ctx, st, false)
	testutil.MustNoErr(t, err, "second Build")
	if !res.Skipped {
		t.Error("second Build without force did not skip")
	}
	second, err := m.Status()
	testutil.MustNoErr(t, err, "Status")

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Status changed across idempotent builds (-first +second):\n%s", diff)
	}
	if !first.Exists || first.Stale || first.SplitCount != 2 || first.SizeBytes == 0 {
		t.Errorf("Status = %+v", first)
	}
}

func TestBuildForceRebuilds(t *testing.T) {
	m, st, b := newManager(t)
	ctx := context.Background()

	_, err := m.Build(ctx, st, false)
	testutil.MustNoErr(t, err, "Build")

	b.Tx("2024-03-02", "Stamps", "EUR",
		ledgertest.L("Assets:Bank:Checking", "-5"),
		ledgertest.L("Expenses:Office", "5"))
	res, err := m.Build(ctx, st, true)
	testutil.MustNoErr(t, err, "forced Build")
	if res.Skipped {
		t.Fatal("forced Build skipped")
	}
	if res.Meta.SplitCount != 4 {
		t.Errorf("SplitCount = %d, want 4", res.Meta.SplitCount)
	}

	counts, err := m.AccountSplitCounts()
	testutil.MustNoErr(t, err, "AccountSplitCounts")
	if got := counts[b.AccountGUID("Expenses:Office")]; got != 2 {
		t.Errorf("Expenses:Office count = %d, want 2", got)
	}
}

func TestDropThenStatus(t *testing.T) {
	m, st, _ := newManager(t)

	dropped, err := m.Drop()
	testutil.MustNoErr(t, err, "Drop on missing cache")
	if dropped {
		t.Error("Drop reported removal of a missing cache")
	}

	_, err = m.Build(context.Background(), st, false)
	testutil.MustNoErr(t, err, "Build")
	testutil.MustExist(t, m.Path())

	dropped, err = m.Drop()
	testutil.MustNoErr(t, err, "Drop")
	if !dropped {
		t.Error("Drop = false, want true")
	}
	status, err := m.Status()
	testutil.MustNoErr(t, err, "Status")
	if status.Exists {
		t.Errorf("Status after Drop = %+v, want exists=false", status)
	}
	testutil.MustNotExist(t, m.Path())
}

func TestCapabilities(t *testing.T) {
	m, st, b := newManager(t)

	if _, ok := m.Capabilities(); ok {
		t.Fatal("Capabilities ok before build")
	}
	_, err := m.Build(context.Background(), st, false)
	testutil.MustNoErr(t, err, "Build")

	caps, ok := m.Capabilities()
	if !ok || !caps.HasSlotsNotes || caps.HasNotesColumn {
		t.Fatalf("Capabilities = %+v, %v", caps, ok)
	}

	// Touching the book makes the cache stale.
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(b.Path, later, later); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Capabilities(); ok {
		t.Error("Capabilities ok for a stale cache")
	}
	status, err := m.Status()
	testutil.MustNoErr(t, err, "Status")
	if !status.Stale {
		t.Error("Status.Stale = false after the book changed")
	}
}

func TestStatusCorruptCache(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "cache.db", []byte("not a bolt file"))
	m := New(path, filepath.Join(dir, "book.gnucash"))

	status, err := m.Status()
	testutil.MustNoErr(t, err, "Status")
	if !status.Exists || !status.Stale {
		t.Errorf("Status = %+v, want exists and stale", status)
	}
}
