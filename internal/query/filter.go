package query

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wesm/gcg/internal/book"
)

// fetchParallelism bounds concurrent per-account split reads.
const fetchParallelism = 4

// SplitSource is the read side of a book used by the filter pipeline.
// *book.Store implements it.
type SplitSource interface {
	AccountSplits(ctx context.Context, index int) ([]*book.Split, error)
	TransactionSplits(ctx context.Context, txGUID string) ([]*book.Split, error)
	Notes(ctx context.Context, txGUID string) (string, error)
	Info() book.Info
}

// Match is one split retained by Filter.
type Match struct {
	Split   *book.Split
	Account *book.Account // nil when the split's account is outside the tree
	Notes   string        // empty when the book cannot store notes
}

// TransactionMatch is a retained transaction expanded to all its splits.
type TransactionMatch struct {
	Tx     *book.Transaction
	Notes  string
	Splits []Match
}

// Filter scans the splits of the candidate accounts, in candidate order
// and store order within an account, and keeps those passing every
// predicate of q. Splits are fetched concurrently but filtered and
// deduplicated sequentially, so the result equals a sequential scan.
func Filter(ctx context.Context, source SplitSource, tree *book.AccountTree, candidates []int, q Query) ([]Match, error) {
	return filter(ctx, source, tree, candidates, q, slog.Default())
}

func filter(ctx context.Context, source SplitSource, tree *book.AccountTree, candidates []int, q Query, logger *slog.Logger) ([]Match, error) {
	text, err := newMatcher("text", q.Text.Pattern, q.Text.Regex, q.Text.CaseSensitive)
	if err != nil {
		return nil, err
	}
	var restrict map[int]bool
	if q.Restrict != nil {
		ids, err := ResolveAccounts(tree, *q.Restrict)
		if err != nil {
			return nil, err
		}
		restrict = make(map[int]bool, len(ids))
		for _, i := range ids {
			restrict[i] = true
		}
	}

	caps := source.Info().Capabilities
	fields := SearchFields(q.Text.Fields, caps)
	notes := &notesReader{source: source, logger: logger, supported: caps.NotesSupported()}

	slots := make([][]*book.Split, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallelism)
	for i, idx := range candidates {
		g.Go(func() error {
			splits, err := source.AccountSplits(gctx, idx)
			if err != nil {
				return err
			}
			slots[i] = splits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dedupTx := q.EffectiveDedup() == DedupTx
	seenTx := make(map[string]bool)
	var out []Match
	for _, splits := range slots {
		for _, sp := range splits {
			if restrict != nil && !restrict[sp.Account] {
				continue
			}
			if !inDateWindow(sp.Tx.PostDate, q.Dates) {
				continue
			}
			if !inAmountWindow(sp, q.Amount) {
				continue
			}
			if q.Text.Pattern != "" && !text(haystack(ctx, sp, fields, notes)) {
				continue
			}
			if dedupTx {
				if seenTx[sp.Tx.GUID] {
					continue
				}
				seenTx[sp.Tx.GUID] = true
			}
			out = append(out, Match{Split: sp, Account: accountAt(tree, sp.Account)})
		}
	}

	if notes.supported {
		for i := range out {
			out[i].Notes = notes.get(ctx, out[i].Split.Tx.GUID)
		}
	}
	return out, nil
}

// SearchFields returns the fields a text search will use: requested (nil
// means all) minus notes when the book cannot store them.
func SearchFields(requested []Field, caps book.Capabilities) []Field {
	if requested == nil {
		requested = AllFields
	}
	var out []Field
	for _, f := range requested {
		if f == FieldNotes && !caps.NotesSupported() {
			continue
		}
		out = append(out, f)
	}
	return out
}

func inDateWindow(d time.Time, w DateWindow) bool {
	if w.After != nil && d.Before(*w.After) {
		return false
	}
	if w.Before != nil && !d.Before(*w.Before) {
		return false
	}
	return true
}

func inAmountWindow(sp *book.Split, w AmountWindow) bool {
	amount := sp.Quantity
	if !w.Signed {
		amount = amount.Abs()
	}
	if w.Min != nil && amount.LessThan(*w.Min) {
		return false
	}
	if w.Max != nil && amount.GreaterThan(*w.Max) {
		return false
	}
	return true
}

// haystack joins the requested fields of a split with single spaces.
// Empty fields contribute nothing.
func haystack(ctx context.Context, sp *book.Split, fields []Field, notes *notesReader) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		var v string
		switch f {
		case FieldDescription:
			v = sp.Tx.Description
		case FieldMemo:
			v = sp.Memo
		case FieldNotes:
			v = notes.get(ctx, sp.Tx.GUID)
		}
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func accountAt(tree *book.AccountTree, i int) *book.Account {
	if i < 0 || i >= tree.Len() {
		return nil
	}
	return tree.At(i)
}

// notesReader reads transaction notes, treating a failed read as empty
// notes for that transaction.
type notesReader struct {
	source    SplitSource
	logger    *slog.Logger
	supported bool
}

func (r *notesReader) get(ctx context.Context, txGUID string) string {
	if !r.supported {
		return ""
	}
	n, err := r.source.Notes(ctx, txGUID)
	if err != nil {
		r.logger.Debug("notes unreadable, treating as empty", "tx", txGUID, "error", err)
		return ""
	}
	return n
}

// ExpandTransactions re-expands each transaction of matches to all of its
// splits, in first-seen transaction order. Every split carries the notes of
// its transaction; a split reachable twice appears once.
func ExpandTransactions(ctx context.Context, source SplitSource, tree *book.AccountTree, matches []Match) ([]TransactionMatch, error) {
	var out []TransactionMatch
	seenTx := make(map[string]bool)
	seenSplit := make(map[string]bool)
	for _, m := range matches {
		tx := m.Split.Tx
		if seenTx[tx.GUID] {
			continue
		}
		seenTx[tx.GUID] = true
		splits, err := source.TransactionSplits(ctx, tx.GUID)
		if err != nil {
			return nil, err
		}
		tm := TransactionMatch{Tx: tx, Notes: m.Notes}
		for _, sp := range splits {
			if seenSplit[sp.GUID] {
				continue
			}
			seenSplit[sp.GUID] = true
			tm.Splits = append(tm.Splits, Match{Split: sp, Account: accountAt(tree, sp.Account), Notes: m.Notes})
		}
		out = append(out, tm)
	}
	return out, nil
}
