package query

import (
	"github.com/wesm/gcg/internal/book"
)

// ResolveAccounts returns the indices of the accounts whose full name
// matches sel, plus their descendants when sel.IncludeSubtree is set.
// Indices come back in arena order. No match yields an empty slice.
func ResolveAccounts(tree *book.AccountTree, sel AccountSelector) ([]int, error) {
	match, err := newMatcher("account", sel.Pattern, sel.Regex, sel.CaseSensitive)
	if err != nil {
		return nil, err
	}

	picked := make([]bool, tree.Len())
	for i := 0; i < tree.Len(); i++ {
		if picked[i] || !match(tree.At(i).FullName) {
			continue
		}
		picked[i] = true
		if sel.IncludeSubtree {
			for _, d := range tree.Descendants(i) {
				picked[d] = true
			}
		}
	}

	out := []int{}
	for i, ok := range picked {
		if ok {
			out = append(out, i)
		}
	}
	return out, nil
}

// searchableAccounts returns every account except ROOT and TRADING ones,
// the default universe of a text search.
func searchableAccounts(tree *book.AccountTree) []int {
	var out []int
	for i := 0; i < tree.Len(); i++ {
		switch tree.At(i).Type {
		case book.TypeRoot, book.TypeTrading:
			continue
		}
		out = append(out, i)
	}
	return out
}

// AccountListOptions shapes an accounts listing.
type AccountListOptions struct {
	Tree      bool // report depth for indented rendering
	Prune     bool // add the ancestors of matched accounts
	MaxDepth  int  // keep accounts on the first MaxDepth levels; 0 keeps all
	ShowGUIDs bool
}

// AccountRows builds listing rows for the given account indices in arena
// order.
func AccountRows(tree *book.AccountTree, indices []int, opts AccountListOptions) []AccountRow {
	matched := make(map[int]bool, len(indices))
	for _, i := range indices {
		matched[i] = true
	}
	include := make(map[int]bool, len(indices))
	for i := range matched {
		include[i] = true
		if opts.Prune {
			for _, a := range tree.Ancestors(i) {
				include[a] = true
			}
		}
	}

	var rows []AccountRow
	for i := 0; i < tree.Len(); i++ {
		if !include[i] {
			continue
		}
		acc := tree.At(i)
		if opts.MaxDepth > 0 && acc.Depth >= opts.MaxDepth {
			continue
		}
		row := AccountRow{
			FullName: acc.FullName,
			Name:     acc.Name,
			Type:     acc.Type,
			Currency: acc.Commodity,
			Matched:  matched[i],
		}
		if opts.Tree {
			row.Depth = acc.Depth
		}
		if opts.ShowGUIDs {
			row.GUID = acc.GUID
		}
		rows = append(rows, row)
	}
	return rows
}
