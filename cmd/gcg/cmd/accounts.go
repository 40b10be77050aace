package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesm/gcg/internal/output"
	"github.com/wesm/gcg/internal/query"
)

func newAccountsCmd(a *app) *cobra.Command {
	var (
		regex         bool
		caseSensitive bool
		noSubtree     bool
		tree          bool
		prune         bool
		maxDepth      int
		showGUIDs     bool
	)
	cmd := &cobra.Command{
		Use:   "accounts [PATTERN]",
		Short: "Search accounts by name",
		Long: `List the accounts whose full name matches PATTERN, with their
descendants. Without a pattern every account is listed.

Examples:
  gcg accounts
  gcg accounts Expenses --tree
  gcg accounts '^Assets:Bank' --regex --no-subtree`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxDepth < 0 {
				return fmt.Errorf("--max-depth must not be negative, got %d", maxDepth)
			}
			sel := query.AccountSelector{
				Regex:          regex,
				CaseSensitive:  caseSensitive,
				IncludeSubtree: !noSubtree,
			}
			if len(args) == 1 {
				sel.Pattern = args[0]
			}
			opts := query.AccountListOptions{
				Tree:      tree || prune,
				Prune:     prune,
				MaxDepth:  maxDepth,
				ShowGUIDs: showGUIDs,
			}

			if err := query.ValidateSelector(sel); err != nil {
				return err
			}
			engine, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			res, err := engine.Accounts(cmd.Context(), sel, opts, a.flags.offset, a.flags.limit)
			if err != nil {
				return err
			}
			return a.emit(res, func(f *output.Formatter) error {
				return f.Accounts(res.Accounts, opts.Tree)
			})
		},
	}
	cmd.Flags().BoolVar(&regex, "regex", false, "treat PATTERN as a regular expression")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "use case-sensitive matching")
	cmd.Flags().BoolVar(&noSubtree, "no-subtree", false, "don't include descendant accounts")
	cmd.Flags().BoolVar(&tree, "tree", false, "render as an indented tree")
	cmd.Flags().BoolVar(&prune, "tree-prune", false, "tree of the matched accounts and their ancestors only")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "limit the listing to N levels (0 for all)")
	cmd.Flags().BoolVar(&showGUIDs, "show-guids", false, "include account GUIDs")
	return cmd
}
