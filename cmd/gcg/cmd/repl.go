package cmd

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/wesm/gcg/internal/repl"
)

func newREPLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive shell",
		Long: `Start an interactive shell that keeps the book open between commands.
Commands take the same flags as on the command line. History is kept in
the state directory (see [repl] history_path).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.Context(), a)
		},
	}
}

func runREPL(ctx context.Context, a *app) error {
	if a.interactive {
		return errors.New("already in interactive mode")
	}
	settings := &repl.Settings{
		Format:   a.cfg.Output.Format,
		Currency: a.cfg.Currency.Mode,
		Base:     a.cfg.Currency.Base,
	}
	if a.flags.format != "" {
		settings.Format = a.flags.format
	}
	return repl.Run(ctx, repl.Options{
		Session:     a.session,
		DefaultBook: a.bookPath,
		Dispatch: func(ctx context.Context, args []string, out, errOut io.Writer) error {
			return a.dispatch(ctx, settings, args, out, errOut)
		},
		Settings:    settings,
		HistoryPath: a.cfg.REPL.HistoryPath,
		In:          a.in,
		Out:         a.out,
		ErrOut:      a.errOut,
		Logger:      a.logger,
	})
}

// dispatch runs one shell line through a fresh command tree that shares
// the session and applies the shell settings as defaults.
func (a *app) dispatch(ctx context.Context, s *repl.Settings, args []string, out, errOut io.Writer) error {
	cfg := *a.cfg
	cfg.Output.Format = s.Format
	cfg.Currency.Mode = s.Currency
	cfg.Currency.Base = s.Base

	line := &app{
		cfg:         &cfg,
		logger:      a.logger,
		session:     a.session,
		in:          a.in,
		out:         out,
		errOut:      errOut,
		interactive: true,
	}
	root := newRootCmd(line)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if errors.Is(err, ErrNoMatches) {
		return nil
	}
	return err
}
