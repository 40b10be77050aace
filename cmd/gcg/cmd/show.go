package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wesm/gcg/internal/output"
)

func newTxCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tx GUID",
		Short: "Show a transaction by GUID",
		Long: `Show one transaction with all of its splits. Amounts are signed and
stay in their account currencies.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			res, err := engine.Tx(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(res, func(f *output.Formatter) error {
				return f.Transactions(res.Transactions)
			})
		},
	}
}

func newSplitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "split GUID",
		Short: "Show a split by GUID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			res, err := engine.Split(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(res, func(f *output.Formatter) error {
				return f.Splits(res.Rows)
			})
		},
	}
}
