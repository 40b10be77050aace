package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Print diagnostic information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := a.out
			fmt.Fprintln(w, "gcg diagnostic information")
			fmt.Fprintln(w, strings.Repeat("=", 40))
			fmt.Fprintf(w, "Version: %s\n\n", Version)

			path, err := a.currentBookPath()
			if err != nil {
				fmt.Fprintf(w, "Book path: (not configured)\n")
			} else {
				_, statErr := os.Stat(path)
				fmt.Fprintf(w, "Book path: %s\n", path)
				fmt.Fprintf(w, "Book exists: %t\n", statErr == nil)
				if statErr == nil {
					st, err := a.store(cmd.Context())
					if err != nil {
						fmt.Fprintf(w, "  Error opening: %v\n", err)
					} else {
						info := st.Info()
						fmt.Fprintln(w)
						fmt.Fprintln(w, "Book info:")
						fmt.Fprintf(w, "  Default currency: %s\n", info.DefaultCurrency)
						fmt.Fprintf(w, "  Account count: %d\n", info.AccountCount)
						fmt.Fprintf(w, "  Transaction count: %d\n", info.TransactionCount)
						fmt.Fprintf(w, "  Notes column: %t\n", info.Capabilities.HasNotesColumn)
						fmt.Fprintf(w, "  Notes in slots: %t\n", info.Capabilities.HasSlotsNotes)
					}
				}
			}

			cfg := a.cfg
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Configuration:")
			fmt.Fprintf(w, "  Config file: %s\n", cfg.ConfigFilePath())
			fmt.Fprintf(w, "  Base currency: %s\n", cfg.Currency.Base)
			fmt.Fprintf(w, "  Currency mode: %s\n", cfg.Currency.Mode)
			fmt.Fprintf(w, "  FX lookback days: %d\n", cfg.Currency.FXLookbackDays)
			fmt.Fprintf(w, "  Output format: %s\n", cfg.Output.Format)
			fmt.Fprintf(w, "  Cache path: %s\n", cfg.Cache.Path)
			fmt.Fprintf(w, "  Cache enabled: %t\n", cfg.Cache.Enabled)
			fmt.Fprintf(w, "  History file: %s\n", cfg.REPL.HistoryPath)

			fmt.Fprintln(w)
			fmt.Fprintln(w, "Environment:")
			env := os.Getenv("GCG_BOOK")
			if env == "" {
				env = "(not set)"
			}
			fmt.Fprintf(w, "  GCG_BOOK: %s\n", env)
			return nil
		},
	}
}
