package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesm/gcg/internal/book"
	"github.com/wesm/gcg/internal/config"
	"github.com/wesm/gcg/internal/output"
	"github.com/wesm/gcg/internal/query"
	"github.com/wesm/gcg/internal/session"
)

// ErrNoMatches is returned by query commands that found nothing. The
// binary maps it to exit code 1.
var ErrNoMatches = errors.New("no matches")

// globalFlags are the persistent flags of the root command.
type globalFlags struct {
	cfgFile     string
	homeDir     string
	book        string
	verbose     bool
	format      string
	noHeader    bool
	fields      string
	sort        string
	reverse     bool
	limit       int
	offset      int
	interactive bool
}

// app is the state shared by the commands of one invocation, or by every
// line of an interactive session.
type app struct {
	flags   globalFlags
	cfg     *config.Config
	logger  *slog.Logger
	session *session.Session
	in      io.Reader
	out     io.Writer
	errOut  io.Writer

	// interactive is set while the REPL dispatches a line.
	interactive bool
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut}
}

// setup configures logging and loads the configuration. Inside the REPL
// the first invocation's setup is kept.
func (a *app) setup() error {
	if a.cfg != nil {
		return nil
	}

	level := slog.LevelInfo
	if a.flags.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := config.Load(a.flags.cfgFile, a.flags.homeDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	opts := session.Options{Logger: a.logger}
	if cfg.Cache.Enabled {
		opts.CachePath = cfg.Cache.Path
	}
	a.session = session.New(opts)
	return nil
}

// close releases the open book, if any.
func (a *app) close() {
	if a.session == nil {
		return
	}
	if err := a.session.Close(); err != nil {
		a.logger.Warn("close book", "error", err)
	}
}

// bookPath resolves --book, then GCG_BOOK and the configured path.
func (a *app) bookPath() (string, error) {
	cfg := *a.cfg
	if a.flags.book != "" {
		cfg.Book.Path = a.flags.book
	}
	return cfg.ResolveBookPath()
}

// currentBookPath returns the path of the open book, or the configured
// one when none is open.
func (a *app) currentBookPath() (string, error) {
	if st, err := a.session.Store(); err == nil {
		return st.Path(), nil
	}
	return a.bookPath()
}

// store returns the session's book, opening the configured one on first
// use outside the REPL.
func (a *app) store(ctx context.Context) (*book.Store, error) {
	if st, err := a.session.Store(); err == nil {
		return st, nil
	}
	if a.interactive {
		return nil, errors.New("no book open, use 'open [PATH]' first")
	}
	path, err := a.bookPath()
	if err != nil {
		return nil, err
	}
	return a.session.Open(ctx, path)
}

// engine opens the book and returns a query engine over it.
func (a *app) engine(ctx context.Context) (*query.Engine, error) {
	st, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	return query.NewEngine(st, a.logger), nil
}

// formatter builds the output formatter from the global flags and config.
func (a *app) formatter(includeNotes bool) (*output.Formatter, error) {
	name := a.flags.format
	if name == "" {
		name = a.cfg.Output.Format
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	opts := output.Options{
		Format:       format,
		Header:       a.cfg.Output.Header && !a.flags.noHeader,
		IncludeNotes: includeNotes,
	}
	if a.flags.fields != "" {
		if opts.Fields, err = output.ParseFields(a.flags.fields); err != nil {
			return nil, err
		}
	}
	return output.New(a.out, opts), nil
}

// emit prints the warnings of res to stderr and renders it unless nothing
// matched.
func (a *app) emit(res *query.Result, render func(*output.Formatter) error) error {
	for _, w := range res.Warnings {
		fmt.Fprintf(a.errOut, "Warning: %s\n", w)
	}
	if res.Outcome == query.OutcomeNoMatches {
		return ErrNoMatches
	}
	f, err := a.formatter(res.NotesIncluded)
	if err != nil {
		return err
	}
	return render(f)
}

// newRootCmd builds the full command tree bound to a. The REPL builds a
// fresh tree per line so flag values never leak between lines.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "gcg",
		Short: "Grep-like search for GnuCash SQLite books",
		Long: `gcg searches a GnuCash SQLite book read-only: find splits by text,
list account ledgers, and show transactions, with amounts normalized to
one currency when the matched accounts span several.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip config loading for commands that don't need it
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.interactive {
				return runREPL(cmd.Context(), a)
			}
			return cmd.Help()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.cfgFile, "config", "", "config file (default: ~/.gcg/config.toml)")
	pf.StringVar(&a.flags.homeDir, "home", "", "home directory (overrides GCG_HOME)")
	pf.StringVar(&a.flags.book, "book", "", "path to the GnuCash SQLite book (overrides GCG_BOOK)")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&a.flags.format, "format", "", "output format: table, csv or json (default from config)")
	pf.BoolVar(&a.flags.noHeader, "no-header", false, "omit the header row in table and CSV output")
	pf.StringVar(&a.flags.fields, "fields", "", "comma-separated output columns")
	pf.StringVar(&a.flags.sort, "sort", "date", "sort key: date, amount, account or description")
	pf.BoolVar(&a.flags.reverse, "reverse", false, "reverse the sort order")
	pf.IntVar(&a.flags.limit, "limit", 0, "show at most N rows (0 for all)")
	pf.IntVar(&a.flags.offset, "offset", 0, "skip the first N rows")
	root.Flags().BoolVarP(&a.flags.interactive, "interactive", "i", false, "start the interactive shell")

	root.AddCommand(
		newAccountsCmd(a),
		newGrepCmd(a),
		newLedgerCmd(a),
		newTxCmd(a),
		newSplitCmd(a),
		newDoctorCmd(a),
		newCacheCmd(a),
		newREPLCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	a := newApp(in, out, errOut)
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
