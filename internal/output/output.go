// Package output renders query rows as aligned tables, CSV or JSON.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"

	"github.com/wesm/gcg/internal/query"
)

// Format is an output format.
type Format int

const (
	FormatTable Format = iota
	FormatCSV
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatTable:
		return "table"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat parses "table", "csv" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatTable, fmt.Errorf("invalid output format %q (want table, csv or json)", s)
}

// Split row columns, in display order.
const (
	ColDate         = "date"
	ColDescription  = "description"
	ColAccount      = "account"
	ColMemo         = "memo"
	ColNotes        = "notes"
	ColAmount       = "amount"
	ColCurrency     = "currency"
	ColFXRate       = "fx_rate"
	ColAmountOrig   = "amount_orig"
	ColCurrencyOrig = "currency_orig"
	ColTxGUID       = "tx_guid"
	ColSplitGUID    = "split_guid"
)

// Columns lists every split column accepted by --fields.
var Columns = []string{
	ColDate, ColDescription, ColAccount, ColMemo, ColNotes, ColAmount, ColCurrency,
	ColFXRate, ColAmountOrig, ColCurrencyOrig, ColTxGUID, ColSplitGUID,
}

// ParseFields validates a comma-separated column list.
func ParseFields(s string) ([]string, error) {
	var out []string
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if !slices.Contains(Columns, f) {
			return nil, fmt.Errorf("unknown field %q (want one of %s)", f, strings.Join(Columns, ", "))
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no fields in %q", s)
	}
	return out, nil
}

// DefaultMaxWidth bounds free-text columns in table output.
const DefaultMaxWidth = 40

// Options configures a Formatter.
type Options struct {
	Format Format
	Header bool
	Fields []string // nil selects columns from the rows

	// IncludeNotes adds the notes column to the default selection.
	IncludeNotes bool

	// MaxWidth truncates free-text table cells; 0 means DefaultMaxWidth,
	// negative disables truncation.
	MaxWidth int
}

// Formatter writes rows to w.
type Formatter struct {
	w    io.Writer
	opts Options
}

// New returns a formatter writing to w.
func New(w io.Writer, opts Options) *Formatter {
	if opts.MaxWidth == 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	return &Formatter{w: w, opts: opts}
}

// columns picks the split columns to render.
func (f *Formatter) columns(rows []query.ResultRow) []string {
	if f.opts.Fields != nil {
		return f.opts.Fields
	}
	cols := []string{ColDate, ColDescription, ColAccount, ColMemo}
	if f.opts.IncludeNotes {
		cols = append(cols, ColNotes)
	}
	cols = append(cols, ColAmount, ColCurrency)
	var rate, orig bool
	for _, r := range rows {
		rate = rate || r.FXRate != nil
		orig = orig || r.OriginalAmount != nil
	}
	if rate {
		cols = append(cols, ColFXRate)
	}
	if orig {
		cols = append(cols, ColAmountOrig, ColCurrencyOrig)
	}
	return cols
}

// FormatAmount renders d with the minor-unit digits of an ISO 4217
// currency. Other commodities keep their exact decimal form.
func FormatAmount(d decimal.Decimal, code string) string {
	if cur := money.GetCurrency(code); cur != nil {
		return d.StringFixed(int32(cur.Fraction))
	}
	return d.String()
}

// cell returns the text of one column of r. Table and CSV cells round
// amounts to the currency fraction; JSON keeps exact values.
func cell(r query.ResultRow, col string, exact bool) string {
	amount := func(d decimal.Decimal, code string) string {
		if exact {
			return d.String()
		}
		return FormatAmount(d, code)
	}
	switch col {
	case ColDate:
		return r.Date.Format("2006-01-02")
	case ColDescription:
		return r.Description
	case ColAccount:
		return r.Account
	case ColMemo:
		return r.Memo
	case ColNotes:
		return r.Notes
	case ColAmount:
		return amount(r.Amount, r.Currency)
	case ColCurrency:
		return r.Currency
	case ColFXRate:
		if r.FXRate == nil {
			return ""
		}
		return r.FXRate.String()
	case ColAmountOrig:
		if r.OriginalAmount == nil {
			return ""
		}
		return amount(*r.OriginalAmount, r.OriginalCurrency)
	case ColCurrencyOrig:
		return r.OriginalCurrency
	case ColTxGUID:
		return r.TxGUID
	case ColSplitGUID:
		return r.SplitGUID
	}
	return ""
}

var freeText = map[string]bool{ColDescription: true, ColAccount: true, ColMemo: true, ColNotes: true}

// truncate flattens s to one line and cuts it to maxWidth display cells.
func truncate(s string, maxWidth int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")
	if maxWidth < 0 || runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// Splits renders one row per split.
func (f *Formatter) Splits(rows []query.ResultRow) error {
	cols := f.columns(rows)
	switch f.opts.Format {
	case FormatJSON:
		out := make([]map[string]any, len(rows))
		for i, r := range rows {
			out[i] = splitObject(r, cols)
		}
		return f.writeJSON(out)
	case FormatCSV:
		return f.writeCSV(cols, rows)
	default:
		tw := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
		f.tableHeader(tw, "", cols)
		for _, r := range rows {
			f.tableRow(tw, "", cols, r)
		}
		return tw.Flush()
	}
}

// Transactions renders each transaction with its splits.
func (f *Formatter) Transactions(txs []query.TransactionRow) error {
	var all []query.ResultRow
	for _, tx := range txs {
		all = append(all, tx.Splits...)
	}
	cols := f.columns(all)

	switch f.opts.Format {
	case FormatJSON:
		out := make([]map[string]any, len(txs))
		for i, tx := range txs {
			splits := make([]map[string]any, len(tx.Splits))
			for j, r := range tx.Splits {
				splits[j] = splitObject(r, cols)
			}
			out[i] = map[string]any{
				"tx_guid":     tx.TxGUID,
				"date":        tx.Date.Format("2006-01-02"),
				"description": tx.Description,
				"notes":       tx.Notes,
				"splits":      splits,
			}
		}
		return f.writeJSON(out)
	case FormatCSV:
		if !slices.Contains(cols, ColTxGUID) {
			cols = append([]string{ColTxGUID}, cols...)
		}
		return f.writeCSV(cols, all)
	}

	// Split columns repeat the transaction header; drop them.
	var splitCols []string
	for _, c := range cols {
		if c != ColDate && c != ColDescription && c != ColNotes && c != ColTxGUID {
			splitCols = append(splitCols, c)
		}
	}
	for i, tx := range txs {
		if i > 0 {
			fmt.Fprintln(f.w)
		}
		fmt.Fprintf(f.w, "%s  %s  [%s]\n", tx.Date.Format("2006-01-02"), tx.Description, tx.TxGUID)
		if tx.Notes != "" {
			fmt.Fprintf(f.w, "  notes: %s\n", truncate(tx.Notes, -1))
		}
		tw := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
		f.tableHeader(tw, "  ", splitCols)
		for _, r := range tx.Splits {
			f.tableRow(tw, "  ", splitCols, r)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Accounts renders an accounts listing. In tree mode the leaf name is
// indented by depth; otherwise the full name is shown.
func (f *Formatter) Accounts(rows []query.AccountRow, tree bool) error {
	showGUID := false
	for _, r := range rows {
		showGUID = showGUID || r.GUID != ""
	}
	name := func(r query.AccountRow) string {
		if tree {
			return strings.Repeat("  ", r.Depth) + r.Name
		}
		return r.FullName
	}

	switch f.opts.Format {
	case FormatJSON:
		out := make([]map[string]any, len(rows))
		for i, r := range rows {
			obj := map[string]any{
				"name":      r.FullName,
				"leaf_name": r.Name,
				"type":      r.Type,
				"currency":  r.Currency,
				"depth":     r.Depth,
			}
			if showGUID {
				obj["guid"] = r.GUID
			}
			out[i] = obj
		}
		return f.writeJSON(out)
	case FormatCSV:
		cw := csv.NewWriter(f.w)
		header := []string{"name", "type", "currency", "depth"}
		if showGUID {
			header = append(header, "guid")
		}
		if f.opts.Header {
			if err := cw.Write(header); err != nil {
				return err
			}
		}
		for _, r := range rows {
			rec := []string{r.FullName, r.Type, r.Currency, fmt.Sprint(r.Depth)}
			if showGUID {
				rec = append(rec, r.GUID)
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}

	tw := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
	if f.opts.Header {
		if showGUID {
			fmt.Fprintln(tw, "NAME\tTYPE\tCURRENCY\tGUID")
		} else {
			fmt.Fprintln(tw, "NAME\tTYPE\tCURRENCY")
		}
	}
	for _, r := range rows {
		if showGUID {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name(r), r.Type, r.Currency, r.GUID)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", name(r), r.Type, r.Currency)
		}
	}
	return tw.Flush()
}

func (f *Formatter) tableHeader(w io.Writer, indent string, cols []string) {
	if !f.opts.Header {
		return
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = strings.ToUpper(c)
	}
	fmt.Fprintln(w, indent+strings.Join(names, "\t"))
}

func (f *Formatter) tableRow(w io.Writer, indent string, cols []string, r query.ResultRow) {
	cells := make([]string, len(cols))
	for i, c := range cols {
		v := cell(r, c, false)
		if freeText[c] {
			v = truncate(v, f.opts.MaxWidth)
		}
		cells[i] = v
	}
	fmt.Fprintln(w, indent+strings.Join(cells, "\t"))
}

func (f *Formatter) writeCSV(cols []string, rows []query.ResultRow) error {
	cw := csv.NewWriter(f.w)
	if f.opts.Header {
		if err := cw.Write(cols); err != nil {
			return err
		}
	}
	for _, r := range rows {
		rec := make([]string, len(cols))
		for i, c := range cols {
			rec[i] = cell(r, c, false)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (f *Formatter) writeJSON(v any) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// splitObject builds the JSON object of a split row. Amounts and rates are
// exact decimal strings; absent optional values are null.
func splitObject(r query.ResultRow, cols []string) map[string]any {
	obj := make(map[string]any, len(cols))
	for _, c := range cols {
		switch c {
		case ColFXRate:
			if r.FXRate == nil {
				obj[c] = nil
				continue
			}
		case ColAmountOrig:
			if r.OriginalAmount == nil {
				obj[c] = nil
				continue
			}
		case ColCurrencyOrig:
			if r.OriginalCurrency == "" {
				obj[c] = nil
				continue
			}
		}
		obj[c] = cell(r, c, true)
	}
	return obj
}
