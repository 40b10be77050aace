package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wesm/gcg/internal/textutil"
)

type accountRecord struct {
	guid, name, typ, parent, commodity string
	hidden, placeholder                bool
}

// rootAccountGUID finds the book's root account: from the books table when
// present, otherwise the first parentless ROOT account not named as a
// template root.
func (s *Store) rootAccountGUID(ctx context.Context, hasBooks bool) (string, error) {
	var guid string
	if hasBooks {
		err := s.db.QueryRowContext(ctx, `SELECT root_account_guid FROM books LIMIT 1`).Scan(&guid)
		if err == nil {
			return guid, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("read books: %w", err)
		}
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT guid FROM accounts
		WHERE account_type = 'ROOT' AND (parent_guid IS NULL OR parent_guid = '')
		  AND name <> 'Template Root'
		ORDER BY name LIMIT 1`).Scan(&guid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return guid, err
}

// loadAccounts builds the account arena. Only accounts reachable from root
// are included, which leaves scheduled-transaction templates out. It also
// returns the root account's commodity.
func (s *Store) loadAccounts(ctx context.Context, root string) (*AccountTree, string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.guid, a.name, a.account_type, COALESCE(a.parent_guid, ''),
		       COALESCE(c.mnemonic, ''), COALESCE(a.hidden, 0), COALESCE(a.placeholder, 0)
		FROM accounts a
		LEFT JOIN commodities c ON c.guid = a.commodity_guid`)
	if err != nil {
		return nil, "", fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	records := make(map[string]accountRecord)
	children := make(map[string][]string)
	for rows.Next() {
		var r accountRecord
		if err := rows.Scan(&r.guid, &r.name, &r.typ, &r.parent, &r.commodity, &r.hidden, &r.placeholder); err != nil {
			return nil, "", fmt.Errorf("scan account: %w", err)
		}
		r.name = textutil.EnsureUTF8(r.name)
		records[r.guid] = r
		children[r.parent] = append(children[r.parent], r.guid)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list accounts: %w", err)
	}

	byName := func(guids []string) {
		sort.SliceStable(guids, func(i, j int) bool {
			a, b := records[guids[i]], records[guids[j]]
			if a.name != b.name {
				return a.name < b.name
			}
			return a.guid < b.guid
		})
	}

	tree := &AccountTree{byGUID: make(map[string]int, len(records))}
	var add func(guid string, parent, depth int, prefix string) int
	add = func(guid string, parent, depth int, prefix string) int {
		r := records[guid]
		idx := len(tree.accounts)
		fullName := r.name
		if prefix != "" {
			fullName = prefix + ":" + r.name
		}
		tree.accounts = append(tree.accounts, Account{
			Index:       idx,
			GUID:        r.guid,
			Name:        r.name,
			FullName:    fullName,
			Type:        strings.ToUpper(r.typ),
			Commodity:   r.commodity,
			Parent:      parent,
			Depth:       depth,
			Hidden:      r.hidden,
			Placeholder: r.placeholder,
		})
		tree.byGUID[guid] = idx

		kids := children[guid]
		byName(kids)
		for _, k := range kids {
			if _, seen := tree.byGUID[k]; seen {
				continue // parent cycle in a damaged book
			}
			c := add(k, idx, depth+1, fullName)
			tree.accounts[idx].Children = append(tree.accounts[idx].Children, c)
		}
		return idx
	}

	var top []string
	if root != "" {
		top = children[root]
	} else {
		// No root at all: treat parentless accounts as top level.
		top = children[""]
	}
	byName(top)
	for _, guid := range top {
		if guid == root {
			continue
		}
		tree.roots = append(tree.roots, add(guid, -1, 0, ""))
	}

	return tree, records[root].commodity, nil
}
