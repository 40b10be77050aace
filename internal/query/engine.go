package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/wesm/gcg/internal/book"
	"github.com/wesm/gcg/internal/currency"
)

// Source is everything the engine reads from an open book.
// *book.Store implements it.
type Source interface {
	SplitSource
	currency.RateSource
	Accounts() *book.AccountTree
	Transaction(ctx context.Context, guid string) (*book.Transaction, error)
	Split(ctx context.Context, guid string) (*book.Split, error)
}

// Result is what one command hands to the formatter.
type Result struct {
	Rows         []ResultRow
	Transactions []TransactionRow
	Accounts     []AccountRow

	// DisplayCurrency is the conversion target, empty when rows keep
	// their own account currency.
	DisplayCurrency string

	// NotesIncluded reports whether notes were searched, so the notes
	// column belongs in the default output.
	NotesIncluded bool

	// Warnings are informational lines for stderr, such as skipped
	// conversions. They never change the outcome.
	Warnings []string

	Outcome Outcome
}

// Engine answers the accounts, grep, ledger, tx and split commands over one
// open book.
type Engine struct {
	source Source
	logger *slog.Logger
}

// NewEngine returns an engine reading from source.
func NewEngine(source Source, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{source: source, logger: logger}
}

func (e *Engine) noMatches(format string, args ...any) *Result {
	r := &Result{Outcome: OutcomeNoMatches}
	if format != "" {
		r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
	}
	return r
}

// Accounts lists the accounts matching sel. Offset and limit apply to the
// listing rows.
func (e *Engine) Accounts(ctx context.Context, sel AccountSelector, opts AccountListOptions, offset, limit int) (*Result, error) {
	tree := e.source.Accounts()
	ids, err := ResolveAccounts(tree, sel)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return e.noMatches(""), nil
	}
	rows := paginate(AccountRows(tree, ids, opts), offset, limit)
	return &Result{Accounts: rows, Outcome: OutcomeResults}, nil
}

// Grep searches split text. Without an account pattern every account
// except ROOT and TRADING ones is searched; with one, the resolved
// accounts also act as a membership restriction.
func (e *Engine) Grep(ctx context.Context, q Query) (*Result, error) {
	if err := ValidatePatterns(q); err != nil {
		return nil, err
	}
	tree := e.source.Accounts()

	var candidates []int
	if q.Account.Pattern == "" {
		candidates = searchableAccounts(tree)
	} else {
		ids, err := ResolveAccounts(tree, q.Account)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return e.noMatches("no accounts matching %q", q.Account.Pattern), nil
		}
		candidates = ids
		if q.Restrict == nil {
			restrict := q.Account
			q.Restrict = &restrict
		}
	}

	var warnings []string
	caps := e.source.Info().Capabilities
	requested := q.Text.Fields
	if requested == nil {
		requested = AllFields
	}
	if q.Text.Pattern != "" && slices.Contains(requested, FieldNotes) && !caps.NotesSupported() {
		warnings = append(warnings, "notes are not supported by this book schema; searching without notes")
	}

	res, err := e.search(ctx, tree, candidates, q)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(warnings, res.Warnings...)
	res.NotesIncluded = slices.Contains(SearchFields(requested, caps), FieldNotes)
	return res, nil
}

// Ledger lists the splits of the accounts matching q.Account.
func (e *Engine) Ledger(ctx context.Context, q Query) (*Result, error) {
	if err := ValidatePatterns(q); err != nil {
		return nil, err
	}
	tree := e.source.Accounts()
	ids, err := ResolveAccounts(tree, q.Account)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return e.noMatches("no accounts matching %q", q.Account.Pattern), nil
	}
	return e.search(ctx, tree, ids, q)
}

func (e *Engine) search(ctx context.Context, tree *book.AccountTree, candidates []int, q Query) (*Result, error) {
	matches, err := filter(ctx, e.source, tree, candidates, q, e.logger)
	if err != nil {
		return nil, err
	}

	norm := e.normalizer(tree, candidates, q.Currency)
	res := &Result{
		DisplayCurrency: norm.Target,
		Outcome:         OutcomeResults,
	}
	if len(matches) == 0 {
		res.Outcome = OutcomeNoMatches
		return res, nil
	}

	if q.FullTransaction {
		res.Transactions, err = AssembleTransactions(ctx, e.source, tree, matches, q, norm)
		if err != nil {
			return nil, err
		}
	} else {
		res.Rows = Assemble(ctx, matches, q, norm)
	}
	if norm.Converter != nil {
		for _, p := range norm.Converter.Skipped() {
			res.Warnings = append(res.Warnings, fmt.Sprintf("conversion skipped for %s→%s: no rate within %d days",
				p.From, p.To, norm.Converter.LookbackDays()))
		}
		e.logger.Debug("converted results",
			"target", norm.Target,
			"matches", len(matches),
			"rate_lookups", norm.Converter.Lookups())
	}
	return res, nil
}

// normalizer picks the display currency from the candidate account
// universe and returns a fresh converter for this query.
func (e *Engine) normalizer(tree *book.AccountTree, candidates []int, opts CurrencyOptions) Normalizer {
	base := opts.Base
	if base == "" {
		base = e.source.Info().DefaultCurrency
	}
	currencies := make([]string, 0, len(candidates))
	for _, i := range candidates {
		currencies = append(currencies, tree.At(i).Commodity)
	}
	target, ok := currency.DisplayCurrency(opts.Mode, currencies, base)
	if !ok || target == "" {
		return Normalizer{}
	}
	e.logger.Debug("display currency", "mode", opts.Mode, "target", target)
	return Normalizer{
		Converter: currency.NewConverter(e.source, opts.LookbackDays, e.logger),
		Target:    target,
	}
}

// Tx shows one transaction with all of its splits, signed and in their
// account currencies.
func (e *Engine) Tx(ctx context.Context, guid string) (*Result, error) {
	tx, err := e.source.Transaction(ctx, guid)
	if errors.Is(err, book.ErrNotFound) {
		return e.noMatches("transaction not found: %s", guid), nil
	}
	if err != nil {
		return nil, err
	}
	splits, err := e.source.TransactionSplits(ctx, guid)
	if err != nil {
		return nil, err
	}
	tree := e.source.Accounts()
	notes := e.notes(ctx, guid)

	var norm Normalizer
	tr := TransactionRow{TxGUID: tx.GUID, Date: tx.PostDate, Description: tx.Description, Notes: notes}
	for _, sp := range splits {
		m := Match{Split: sp, Account: accountAt(tree, sp.Account), Notes: notes}
		tr.Splits = append(tr.Splits, norm.row(ctx, m, true, false))
	}
	return &Result{
		Transactions: []TransactionRow{tr},
		Outcome:      OutcomeResults,
	}, nil
}

// Split shows one split, signed and in its account currency.
func (e *Engine) Split(ctx context.Context, guid string) (*Result, error) {
	sp, err := e.source.Split(ctx, guid)
	if errors.Is(err, book.ErrNotFound) {
		return e.noMatches("split not found: %s", guid), nil
	}
	if err != nil {
		return nil, err
	}
	m := Match{Split: sp, Account: accountAt(e.source.Accounts(), sp.Account), Notes: e.notes(ctx, sp.Tx.GUID)}

	var norm Normalizer
	return &Result{
		Rows:    []ResultRow{norm.row(ctx, m, true, false)},
		Outcome: OutcomeResults,
	}, nil
}

func (e *Engine) notes(ctx context.Context, txGUID string) string {
	r := notesReader{source: e.source, logger: e.logger, supported: e.source.Info().Capabilities.NotesSupported()}
	return r.get(ctx, txGUID)
}
