package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wesm/gcg/internal/output"
	"github.com/wesm/gcg/internal/query"
)

func newGrepCmd(a *app) *cobra.Command {
	var (
		filters       filterFlags
		regex         bool
		caseSensitive bool
		in            string
		account       string
		fullTx        bool
		dedupe        string
	)
	cmd := &cobra.Command{
		Use:   "grep TEXT",
		Short: "Search splits and transactions for text",
		Long: `Search transaction descriptions, split memos and transaction notes.
TEXT is a case-insensitive substring unless --regex or --case-sensitive
is given.

Examples:
  gcg grep amazon --after 2025-01-01 --amount 10..100
  gcg grep 'coffee|tea' --regex --in desc,memo
  gcg grep rent --account Expenses:Housing --full-tx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := query.Query{
				Text: query.TextSelector{
					Pattern:       args[0],
					Regex:         regex,
					CaseSensitive: caseSensitive,
				},
				FullTransaction: fullTx,
			}
			if in != "" {
				fields, err := query.ParseFields(in)
				if err != nil {
					return err
				}
				q.Text.Fields = fields
			}
			if account != "" {
				q.Account = query.AccountSelector{
					Pattern:        account,
					Regex:          filters.accountRegex,
					IncludeSubtree: !filters.noSubtree,
				}
			}
			var err error
			if q.Dedup, err = query.ParseDedupMode(dedupe); err != nil {
				return err
			}
			if err := filters.apply(cmd, a, &q); err != nil {
				return err
			}
			return a.runSearch(cmd, q, (*query.Engine).Grep)
		},
	}
	cmd.Flags().BoolVar(&regex, "regex", false, "treat TEXT as a regular expression")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "use case-sensitive matching")
	cmd.Flags().StringVar(&in, "in", "", "fields to search: desc,memo,notes (default: all)")
	cmd.Flags().StringVar(&account, "account", "", "restrict to accounts matching PATTERN")
	cmd.Flags().BoolVar(&fullTx, "full-tx", false, "show full transactions containing matches")
	cmd.Flags().StringVar(&dedupe, "dedupe", "split", "deduplication mode: split or tx")
	filters.register(cmd)
	return cmd
}

// runSearch checks the patterns of q before opening the book, then runs
// search and renders rows or transactions.
func (a *app) runSearch(cmd *cobra.Command, q query.Query, search func(*query.Engine, context.Context, query.Query) (*query.Result, error)) error {
	if err := query.ValidatePatterns(q); err != nil {
		return err
	}
	engine, err := a.engine(cmd.Context())
	if err != nil {
		return err
	}
	res, err := search(engine, cmd.Context(), q)
	if err != nil {
		return err
	}
	return a.emit(res, func(f *output.Formatter) error {
		if q.FullTransaction {
			return f.Transactions(res.Transactions)
		}
		return f.Splits(res.Rows)
	})
}
