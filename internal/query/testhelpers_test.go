package query

import (
	"context"
	"testing"

	"github.com/wesm/gcg/internal/book"
	"github.com/wesm/gcg/internal/testutil"
	"github.com/wesm/gcg/internal/testutil/ledgertest"
)

func openStore(t *testing.T, b *ledgertest.Book) *book.Store {
	t.Helper()
	st, err := book.Open(context.Background(), b.Path, book.Options{})
	testutil.MustNoErr(t, err, "book.Open")
	t.Cleanup(func() { st.Close() })
	return st
}

// officeStore is the Office Supplies book from ledgertest.SeedOffice.
func officeStore(t *testing.T) *book.Store {
	t.Helper()
	b := ledgertest.New(t)
	b.SeedOffice()
	return openStore(t, b)
}

// accountIndex returns the arena index of the account named fullName.
func accountIndex(t *testing.T, tree *book.AccountTree, fullName string) int {
	t.Helper()
	for i := 0; i < tree.Len(); i++ {
		if tree.At(i).FullName == fullName {
			return i
		}
	}
	t.Fatalf("no account %q", fullName)
	return -1
}

// fullNames maps account indices to full names.
func fullNames(tree *book.AccountTree, ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = tree.At(id).FullName
	}
	return out
}

func descriptions(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Split.Tx.Description
	}
	return out
}

func allAccounts(tree *book.AccountTree) []int {
	out := make([]int, tree.Len())
	for i := range out {
		out[i] = i
	}
	return out
}
