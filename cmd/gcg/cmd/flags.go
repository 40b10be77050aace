package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/wesm/gcg/internal/config"
	"github.com/wesm/gcg/internal/currency"
	"github.com/wesm/gcg/internal/query"
)

const dateLayout = "2006-01-02"

// parseDate parses a YYYY-MM-DD date at midnight UTC.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
	}
	return t, nil
}

// splitRange splits "A..B", "A.." or "..B".
func splitRange(s, what, form string) (lo, hi string, err error) {
	lo, hi, ok := strings.Cut(s, "..")
	if !ok {
		return "", "", fmt.Errorf("invalid %s range %q, use %s", what, s, form)
	}
	return strings.TrimSpace(lo), strings.TrimSpace(hi), nil
}

// parseDateRange parses an inclusive date range. Either end may be open.
func parseDateRange(s string) (start, end *time.Time, err error) {
	lo, hi, err := splitRange(s, "date", "A..B, A.. or ..B")
	if err != nil {
		return nil, nil, err
	}
	if lo != "" {
		t, err := parseDate(lo)
		if err != nil {
			return nil, nil, err
		}
		start = &t
	}
	if hi != "" {
		t, err := parseDate(hi)
		if err != nil {
			return nil, nil, err
		}
		end = &t
	}
	return start, end, nil
}

// parseAmountRange parses "MIN..MAX". Either end may be open.
func parseAmountRange(s string) (lo, hi *decimal.Decimal, err error) {
	minStr, maxStr, err := splitRange(s, "amount", "MIN..MAX, MIN.. or ..MAX")
	if err != nil {
		return nil, nil, err
	}
	parse := func(v string) (*decimal.Decimal, error) {
		if v == "" {
			return nil, nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid amount in range %q", s)
		}
		return &d, nil
	}
	if lo, err = parse(minStr); err != nil {
		return nil, nil, err
	}
	if hi, err = parse(maxStr); err != nil {
		return nil, nil, err
	}
	if lo != nil && hi != nil && lo.GreaterThan(*hi) {
		return nil, nil, fmt.Errorf("invalid amount range %q: minimum exceeds maximum", s)
	}
	return lo, hi, nil
}

// filterFlags are the split filters shared by grep and ledger.
type filterFlags struct {
	accountRegex bool
	noSubtree    bool
	after        string
	before       string
	dateRange    string
	amountRange  string
	signed       bool

	currencyMode string
	baseCurrency string
	alsoOriginal bool
	fxLookback   int
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.BoolVar(&f.accountRegex, "account-regex", false, "account pattern is a regular expression")
	fl.BoolVar(&f.noSubtree, "no-subtree", false, "don't include descendant accounts")
	fl.StringVar(&f.after, "after", "", "posted on or after DATE (inclusive)")
	fl.StringVar(&f.before, "before", "", "posted before DATE (exclusive)")
	fl.StringVar(&f.dateRange, "date", "", "date range A..B, inclusive on both ends")
	fl.StringVar(&f.amountRange, "amount", "", "amount range MIN..MAX")
	fl.BoolVar(&f.signed, "signed", false, "compare signed amounts (default: absolute)")
	fl.StringVar(&f.currencyMode, "currency", "", "currency mode: auto, base, account or split (default from config)")
	fl.StringVar(&f.baseCurrency, "base-currency", "", "base currency for conversions (default from config)")
	fl.BoolVar(&f.alsoOriginal, "also-original", false, "show the original amount next to converted ones")
	fl.IntVar(&f.fxLookback, "fx-lookback", 0, "days a rate lookup searches backward (default from config)")
}

// dates resolves --after, --before and --date. --date overrides the
// ends it sets; its end is inclusive.
func (f *filterFlags) dates() (query.DateWindow, error) {
	var w query.DateWindow
	if f.after != "" {
		t, err := parseDate(f.after)
		if err != nil {
			return w, err
		}
		w.After = &t
	}
	if f.before != "" {
		t, err := parseDate(f.before)
		if err != nil {
			return w, err
		}
		w.Before = &t
	}
	if f.dateRange != "" {
		start, end, err := parseDateRange(f.dateRange)
		if err != nil {
			return w, err
		}
		if start != nil {
			w.After = start
		}
		if end != nil {
			next := end.AddDate(0, 0, 1)
			w.Before = &next
		}
	}
	return w, nil
}

func (f *filterFlags) amounts() (query.AmountWindow, error) {
	w := query.AmountWindow{Signed: f.signed}
	if f.amountRange == "" {
		return w, nil
	}
	lo, hi, err := parseAmountRange(f.amountRange)
	if err != nil {
		return w, err
	}
	w.Min, w.Max = lo, hi
	return w, nil
}

// currencyOptions merges the currency flags over the configuration.
func (f *filterFlags) currencyOptions(cmd *cobra.Command, cfg *config.Config) (query.CurrencyOptions, error) {
	modeName := f.currencyMode
	if modeName == "" {
		modeName = cfg.Currency.Mode
	}
	mode, err := currency.ParseMode(modeName)
	if err != nil {
		return query.CurrencyOptions{}, err
	}
	base := strings.ToUpper(strings.TrimSpace(f.baseCurrency))
	if base == "" {
		base = cfg.Currency.Base
	} else if err := config.ValidateCurrency(base); err != nil {
		return query.CurrencyOptions{}, fmt.Errorf("--base-currency: %w", err)
	}
	lookback := cfg.Currency.FXLookbackDays
	if cmd.Flags().Changed("fx-lookback") {
		if f.fxLookback < 0 {
			return query.CurrencyOptions{}, fmt.Errorf("--fx-lookback must not be negative, got %d", f.fxLookback)
		}
		lookback = f.fxLookback
	}
	return query.CurrencyOptions{
		Mode:         mode,
		Base:         base,
		LookbackDays: lookback,
		AlsoOriginal: f.alsoOriginal,
	}, nil
}

// apply fills the filter, currency and ordering parts of q.
func (f *filterFlags) apply(cmd *cobra.Command, a *app, q *query.Query) error {
	var err error
	if q.Dates, err = f.dates(); err != nil {
		return err
	}
	if q.Amount, err = f.amounts(); err != nil {
		return err
	}
	if q.Currency, err = f.currencyOptions(cmd, a.cfg); err != nil {
		return err
	}
	return a.applyOrdering(q)
}

// applyOrdering copies --sort, --reverse, --offset and --limit into q.
func (a *app) applyOrdering(q *query.Query) error {
	field, err := query.ParseSortField(a.flags.sort)
	if err != nil {
		return err
	}
	if a.flags.offset < 0 || a.flags.limit < 0 {
		return fmt.Errorf("--offset and --limit must not be negative")
	}
	q.SortField = field
	if a.flags.reverse {
		q.SortDirection = query.SortDesc
	}
	q.Offset, q.Limit = a.flags.offset, a.flags.limit
	return nil
}
