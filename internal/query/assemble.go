package query

import (
	"context"
	"sort"

	"github.com/wesm/gcg/internal/book"
	"github.com/wesm/gcg/internal/currency"
)

// Normalizer converts display amounts into Target. The zero value leaves
// every row in its own account currency.
type Normalizer struct {
	Converter *currency.Converter
	Target    string
}

// row projects a match into a display row.
func (n Normalizer) row(ctx context.Context, m Match, signed, alsoOriginal bool) ResultRow {
	sp, tx := m.Split, m.Split.Tx
	r := ResultRow{
		Date:        tx.PostDate,
		Description: tx.Description,
		Memo:        sp.Memo,
		Notes:       m.Notes,
		Amount:      sp.Quantity,
		Currency:    tx.Currency,
		TxGUID:      tx.GUID,
		SplitGUID:   sp.GUID,
	}
	if m.Account != nil {
		r.Account = m.Account.FullName
		if m.Account.Commodity != "" {
			r.Currency = m.Account.Commodity
		}
	}
	if !signed {
		r.Amount = r.Amount.Abs()
	}

	if n.Converter == nil || n.Target == "" || n.Target == r.Currency {
		return r
	}
	c := n.Converter.Convert(ctx, r.Amount, r.Currency, n.Target, tx.PostDate)
	if !c.Converted {
		return r
	}
	if alsoOriginal {
		orig := r.Amount
		r.OriginalAmount = &orig
		r.OriginalCurrency = r.Currency
	}
	r.Amount, r.Currency, r.FXRate = c.Amount, c.Currency, c.Rate
	return r
}

// Assemble converts matches to rows, sorts them stably by q's sort key and
// applies offset then limit.
func Assemble(ctx context.Context, matches []Match, q Query, norm Normalizer) []ResultRow {
	rows := make([]ResultRow, len(matches))
	for i, m := range matches {
		rows[i] = norm.row(ctx, m, q.Amount.Signed, q.Currency.AlsoOriginal)
	}
	order := sortOrder(rows, q.SortField, q.SortDirection)
	order = paginate(order, q.Offset, q.Limit)

	out := make([]ResultRow, len(order))
	for i, j := range order {
		out[i] = rows[j]
	}
	return out
}

// AssembleTransactions sorts and paginates the per-transaction matches
// like Assemble, then expands each into a TransactionRow holding all of
// its splits converted with the same Normalizer.
func AssembleTransactions(ctx context.Context, source SplitSource, tree *book.AccountTree, matches []Match, q Query, norm Normalizer) ([]TransactionRow, error) {
	rows := make([]ResultRow, len(matches))
	for i, m := range matches {
		rows[i] = norm.row(ctx, m, q.Amount.Signed, q.Currency.AlsoOriginal)
	}
	order := paginate(sortOrder(rows, q.SortField, q.SortDirection), q.Offset, q.Limit)

	picked := make([]Match, len(order))
	for i, j := range order {
		picked[i] = matches[j]
	}
	expanded, err := ExpandTransactions(ctx, source, tree, picked)
	if err != nil {
		return nil, err
	}

	out := make([]TransactionRow, 0, len(expanded))
	for _, tm := range expanded {
		tr := TransactionRow{
			TxGUID:      tm.Tx.GUID,
			Date:        tm.Tx.PostDate,
			Description: tm.Tx.Description,
			Notes:       tm.Notes,
		}
		for _, m := range tm.Splits {
			tr.Splits = append(tr.Splits, norm.row(ctx, m, q.Amount.Signed, q.Currency.AlsoOriginal))
		}
		out = append(out, tr)
	}
	return out, nil
}

// sortOrder returns row positions stably sorted by field. Descending order
// reverses the comparison only, so equal rows keep their input order.
func sortOrder(rows []ResultRow, field SortField, dir SortDirection) []int {
	less := func(a, b *ResultRow) bool {
		switch field {
		case SortByAmount:
			return a.Amount.LessThan(b.Amount)
		case SortByAccount:
			return a.Account < b.Account
		case SortByDescription:
			return a.Description < b.Description
		default:
			return a.Date.Before(b.Date)
		}
	}
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := &rows[order[i]], &rows[order[j]]
		if dir == SortDesc {
			return less(b, a)
		}
		return less(a, b)
	})
	return order
}

// paginate applies offset then limit. Limit 0 means unlimited.
func paginate[T any](s []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(s) {
			return s[:0]
		}
		s = s[offset:]
	}
	if limit > 0 && limit < len(s) {
		s = s[:limit]
	}
	return s
}
