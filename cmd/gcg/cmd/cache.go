package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wesm/gcg/internal/cache"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the sidecar cache",
		Long: `The sidecar cache records per-account split counts and how the book
stores notes, so later runs can skip probing the schema. Query results
never depend on it.`,
	}
	cmd.AddCommand(newCacheBuildCmd(a), newCacheStatusCmd(a), newCacheDropCmd(a))
	return cmd
}

// cacheManager returns the cache manager for the current book.
func (a *app) cacheManager() (*cache.Manager, error) {
	path, err := a.currentBookPath()
	if err != nil {
		return nil, err
	}
	return cache.New(a.cfg.Cache.Path, path).WithLogger(a.logger), nil
}

func newCacheBuildCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the cache from the book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.cacheManager()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Building cache at %s...\n", m.Path())
			st, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			res, err := m.Build(cmd.Context(), st, force)
			if err != nil {
				return fmt.Errorf("build cache: %w", err)
			}
			if res.Skipped {
				fmt.Fprintln(a.out, "Cache already exists (use --force to rebuild).")
				return nil
			}
			fmt.Fprintln(a.out, "Cache built successfully.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "rebuild even if a cache exists")
	return cmd
}

func newCacheStatusCmd(a *app) *cobra.Command {
	var perAccount bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache state",
		Long: `Show the cache file, its age and whether it still matches the book.
With --accounts the cached split count of every account is listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.cacheManager()
			if err != nil {
				return err
			}
			status, err := m.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Cache path: %s\n", m.Path())
			fmt.Fprintf(a.out, "Cache exists: %t\n", status.Exists)
			if status.Exists {
				fmt.Fprintf(a.out, "Cache size: %s\n", humanize.Bytes(uint64(status.SizeBytes)))
				fmt.Fprintf(a.out, "Last modified: %s (%s)\n",
					status.Modified.Format("2006-01-02 15:04:05"), humanize.Time(status.Modified))
				fmt.Fprintf(a.out, "Split count: %s\n", humanize.Comma(status.SplitCount))
				fmt.Fprintf(a.out, "Stale: %t\n", status.Stale)
			}
			if !status.Exists || status.Stale {
				return nil
			}
			counts, err := m.AccountSplitCounts()
			if err != nil {
				return fmt.Errorf("read cache: %w", err)
			}
			fmt.Fprintf(a.out, "Accounts with splits: %s\n", humanize.Comma(int64(len(counts))))
			if !perAccount {
				return nil
			}
			return a.printAccountCounts(cmd, counts)
		},
	}
	cmd.Flags().BoolVar(&perAccount, "accounts", false, "list the cached split count per account")
	return cmd
}

// printAccountCounts lists cached split counts by account full name.
// Accounts the book no longer has are shown by GUID.
func (a *app) printAccountCounts(cmd *cobra.Command, counts map[string]int64) error {
	st, err := a.store(cmd.Context())
	if err != nil {
		return err
	}
	tree := st.Accounts()
	type line struct {
		name string
		n    int64
	}
	lines := make([]line, 0, len(counts))
	for guid, n := range counts {
		name := guid
		if i, ok := tree.Index(guid); ok {
			name = tree.At(i).FullName
		}
		lines = append(lines, line{name, n})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].name < lines[j].name })

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, l := range lines {
		fmt.Fprintf(w, "  %s\t%s\n", l.name, humanize.Comma(l.n))
	}
	return w.Flush()
}

func newCacheDropCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Delete the cache file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.cacheManager()
			if err != nil {
				return err
			}
			dropped, err := m.Drop()
			if err != nil {
				return err
			}
			if dropped {
				fmt.Fprintln(a.out, "Cache dropped.")
			} else {
				fmt.Fprintln(a.out, "No cache to drop.")
			}
			return nil
		},
	}
}
