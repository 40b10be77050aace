package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wesm/gcg/internal/query"
)

func newLedgerCmd(a *app) *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "ledger ACCOUNT_PATTERN",
		Short: "List the splits of matching accounts",
		Long: `List every split posted to the accounts matching ACCOUNT_PATTERN and
their descendants, sorted by date.

Examples:
  gcg ledger Assets:Bank --date 2024-01-01..2024-12-31
  gcg ledger Travel --currency account --sort amount --reverse`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := query.Query{
				Account: query.AccountSelector{
					Pattern:        args[0],
					Regex:          filters.accountRegex,
					IncludeSubtree: !filters.noSubtree,
				},
			}
			if err := filters.apply(cmd, a, &q); err != nil {
				return err
			}
			return a.runSearch(cmd, q, (*query.Engine).Ledger)
		},
	}
	filters.register(cmd)
	return cmd
}
