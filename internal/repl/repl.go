// Package repl implements the interactive shell. The book stays open
// across lines; query commands are parsed and run by a Dispatcher so they
// accept exactly the flags of the command line.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-shellwords"

	"github.com/wesm/gcg/internal/config"
	"github.com/wesm/gcg/internal/currency"
	"github.com/wesm/gcg/internal/output"
	"github.com/wesm/gcg/internal/session"
)

// Dispatcher runs one command line (without the program name) and writes
// its output to out and errOut.
type Dispatcher func(ctx context.Context, args []string, out, errOut io.Writer) error

// Settings are the session defaults changed with "set". The dispatcher
// applies them below any flag given on the line.
type Settings struct {
	Format   string
	Currency string
	Base     string
}

// Set validates and stores one setting and returns a confirmation line.
func (s *Settings) Set(key, value string) (string, error) {
	switch strings.ToLower(key) {
	case "format":
		f, err := output.ParseFormat(value)
		if err != nil {
			return "", err
		}
		s.Format = f.String()
		return "Output format set to: " + s.Format, nil
	case "currency":
		m, err := currency.ParseMode(value)
		if err != nil {
			return "", err
		}
		s.Currency = m.String()
		return "Currency mode set to: " + s.Currency, nil
	case "base", "base-currency":
		code := strings.ToUpper(strings.TrimSpace(value))
		if err := config.ValidateCurrency(code); err != nil {
			return "", err
		}
		s.Base = code
		return "Base currency set to: " + s.Base, nil
	}
	return "", fmt.Errorf("unknown setting %q (want format, currency or base)", key)
}

// Options configures Run.
type Options struct {
	Session *session.Session

	// DefaultBook resolves the book opened at start and by a bare "open".
	DefaultBook func() (string, error)

	Dispatch    Dispatcher
	Settings    *Settings
	HistoryPath string

	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
	Logger *slog.Logger
}

// queryCommands are dispatched to the command tree; the value reports
// whether the command needs an open book.
var queryCommands = map[string]bool{
	"accounts": true,
	"grep":     true,
	"ledger":   true,
	"tx":       true,
	"split":    true,
	"doctor":   false,
	"cache":    false,
	"version":  false,
}

// usage lines for commands that need an argument.
var usage = map[string]string{
	"grep":   "grep TEXT [OPTIONS]",
	"ledger": "ledger ACCOUNT_PATTERN [OPTIONS]",
	"tx":     "tx GUID",
	"split":  "split GUID",
}

const helpText = `gcg interactive commands:

  open [PATH]       Open a GnuCash book (default: configured path)
  close             Close the current book
  accounts [PATTERN] [OPTIONS]
                    Search accounts by pattern
  grep TEXT [OPTIONS]
                    Search splits and transactions for text
  ledger ACCOUNT [OPTIONS]
                    Display the ledger of matching accounts
  tx GUID           Show a transaction by GUID
  split GUID        Show a split by GUID
  doctor            Print diagnostic information
  cache build|status|drop
                    Manage the sidecar cache

  set               Show the current settings
  set format table|csv|json
  set currency auto|base|account|split
  set base CUR      Base currency for conversions

  help              Show this help
  quit / exit       Leave the shell

Options are the same as on the command line, for example:
  grep amazon --after 2025-01-01 --amount 10..100
  ledger "Assets:Bank" --currency account
`

// shell executes lines. It is shared by the terminal UI and line mode.
type shell struct {
	opts    Options
	logger  *slog.Logger
	history *History
}

func newShell(opts Options) *shell {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Settings == nil {
		opts.Settings = &Settings{}
	}
	return &shell{opts: opts, logger: logger, history: LoadHistory(opts.HistoryPath, logger)}
}

func (s *shell) prompt() string {
	if s.opts.Session.IsOpen() {
		return "gcg> "
	}
	return "gcg (no book)> "
}

// exec runs one line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, line string, out, errOut io.Writer) (quit bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false
	}
	args, err := shellwords.Parse(line)
	if err != nil {
		fmt.Fprintf(errOut, "Parse error: %v\n", err)
		return false
	}
	if len(args) == 0 {
		return false
	}

	name := strings.ToLower(args[0])
	rest := args[1:]
	switch name {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(out, helpText)
	case "open":
		var path string
		if len(rest) > 0 {
			path = rest[0]
		}
		s.open(ctx, path, out, errOut)
	case "close":
		if !s.opts.Session.IsOpen() {
			fmt.Fprintln(out, "No book open.")
			return false
		}
		if err := s.opts.Session.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		fmt.Fprintln(out, "Book closed.")
	case "set":
		s.set(rest, out, errOut)
	default:
		needsBook, ok := queryCommands[name]
		if !ok {
			fmt.Fprintf(errOut, "Unknown command: %s. Type 'help' for commands.\n", args[0])
			return false
		}
		if u, ok := usage[name]; ok && len(rest) == 0 {
			fmt.Fprintf(errOut, "Usage: %s\n", u)
			return false
		}
		if needsBook && !s.opts.Session.IsOpen() {
			fmt.Fprintln(errOut, "No book open. Use 'open [PATH]' first.")
			return false
		}
		argv := append([]string{name}, rest...)
		if err := s.opts.Dispatch(ctx, argv, out, errOut); err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
		}
	}
	return false
}

// open opens path, or the default book when path is empty.
func (s *shell) open(ctx context.Context, path string, out, errOut io.Writer) bool {
	if path == "" {
		if s.opts.DefaultBook == nil {
			fmt.Fprintln(errOut, "Error: no book configured, use 'open PATH'")
			return false
		}
		p, err := s.opts.DefaultBook()
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		path = p
	} else if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	st, err := s.opts.Session.Open(ctx, path)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return false
	}
	info := st.Info()
	fmt.Fprintf(out, "Opened: %s\n", path)
	fmt.Fprintf(out, "  Accounts: %d\n", info.AccountCount)
	fmt.Fprintf(out, "  Transactions: %d\n", info.TransactionCount)
	return true
}

func (s *shell) set(args []string, out, errOut io.Writer) {
	st := s.opts.Settings
	if len(args) < 2 {
		fmt.Fprintln(out, "Current settings:")
		fmt.Fprintf(out, "  format: %s\n", st.Format)
		fmt.Fprintf(out, "  currency: %s\n", st.Currency)
		fmt.Fprintf(out, "  base: %s\n", st.Base)
		return
	}
	msg, err := st.Set(args[0], args[1])
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(out, msg)
}

// start prints the banner and opens the default book when one resolves.
func (s *shell) start(ctx context.Context) {
	fmt.Fprintln(s.opts.Out, bannerStyle.Render("gcg interactive mode. Type 'help' for commands, 'quit' to exit."))
	if s.opts.DefaultBook != nil {
		if _, err := s.opts.DefaultBook(); err == nil {
			if s.open(ctx, "", s.opts.Out, s.opts.ErrOut) {
				return
			}
		}
	}
	fmt.Fprintln(s.opts.Out, "(No book loaded. Use 'open PATH' to load one.)")
}

// Run starts the shell and returns when the user quits, input ends, or
// ctx is cancelled. The history is saved and the book closed on return.
func Run(ctx context.Context, opts Options) error {
	if opts.Session == nil || opts.Dispatch == nil {
		return errors.New("repl: session and dispatcher are required")
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}

	s := newShell(opts)
	defer func() {
		if err := s.history.Save(); err != nil {
			s.logger.Warn("save history", "error", err)
		}
		if err := s.opts.Session.Close(); err != nil {
			s.logger.Warn("close book", "error", err)
		}
	}()

	s.start(ctx)
	if isTerminal(opts.In) {
		p := tea.NewProgram(newModel(ctx, s),
			tea.WithContext(ctx),
			tea.WithInput(opts.In),
			tea.WithOutput(opts.Out),
		)
		if _, err := p.Run(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("run shell: %w", err)
		}
		return nil
	}
	return s.runLines(ctx)
}

// runLines reads commands from a non-terminal input without prompts.
func (s *shell) runLines(ctx context.Context) error {
	sc := bufio.NewScanner(s.opts.In)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Text()
		s.history.Add(line)
		if s.exec(ctx, line, s.opts.Out, s.opts.ErrOut) {
			return nil
		}
	}
	return sc.Err()
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
