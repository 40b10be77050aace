package currency

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Rate is the price of one unit of From expressed in To, effective on Date.
type Rate struct {
	From  string
	To    string
	Date  time.Time
	Value decimal.Decimal
}

// RateSource finds the most recent rate for from→to effective on a day in
// [earliest, asOf]. ok is false when no such rate exists.
type RateSource interface {
	LookupRate(ctx context.Context, from, to string, asOf, earliest time.Time) (rate Rate, ok bool, err error)
}

// Conversion is the result of Convert. Rate is nil unless Converted.
type Conversion struct {
	Amount    decimal.Decimal
	Currency  string
	Rate      *decimal.Decimal
	Converted bool
}

// Pair identifies a conversion direction.
type Pair struct {
	From string
	To   string
}

type rateKey struct {
	from, to string
	day      string
}

type cachedRate struct {
	rate Rate
	ok   bool
}

// Converter converts amounts between currencies. It memoizes rate lookups
// for its own lifetime; create one per query.
type Converter struct {
	source       RateSource
	lookbackDays int
	logger       *slog.Logger

	rates   map[rateKey]cachedRate
	skipped map[Pair]struct{}
	lookups int
}

// NewConverter returns a converter backed by source. lookbackDays bounds
// how far before the transaction date a rate may be taken from.
func NewConverter(source RateSource, lookbackDays int, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	if lookbackDays < 0 {
		lookbackDays = 0
	}
	return &Converter{
		source:       source,
		lookbackDays: lookbackDays,
		logger:       logger,
		rates:        make(map[rateKey]cachedRate),
		skipped:      make(map[Pair]struct{}),
	}
}

// Convert converts amount from one currency to another at the rate in
// effect on asOf. When no rate is available within the lookback window the
// original amount and currency are returned with Converted=false.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOf time.Time) Conversion {
	unchanged := Conversion{Amount: amount, Currency: from}
	if from == to || to == "" {
		return unchanged
	}

	rate, ok := c.rate(ctx, from, to, asOf)
	if !ok {
		c.skipped[Pair{From: from, To: to}] = struct{}{}
		return unchanged
	}

	value := rate.Value
	return Conversion{
		Amount:    amount.Mul(value),
		Currency:  to,
		Rate:      &value,
		Converted: true,
	}
}

func (c *Converter) rate(ctx context.Context, from, to string, asOf time.Time) (Rate, bool) {
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	key := rateKey{from: from, to: to, day: day.Format(time.DateOnly)}
	if cached, hit := c.rates[key]; hit {
		return cached.rate, cached.ok
	}

	c.lookups++
	earliest := day.AddDate(0, 0, -c.lookbackDays)
	rate, ok, err := c.source.LookupRate(ctx, from, to, day, earliest)
	if err != nil {
		c.logger.Warn("exchange rate lookup failed", "from", from, "to", to, "date", key.day, "error", err)
		ok = false
	}
	if !ok {
		c.logger.Debug("no exchange rate in window", "from", from, "to", to, "date", key.day, "lookback_days", c.lookbackDays)
	}
	c.rates[key] = cachedRate{rate: rate, ok: ok}
	return rate, ok
}

// LookbackDays returns the configured lookback window.
func (c *Converter) LookbackDays() int { return c.lookbackDays }

// Lookups returns how many times the rate source was consulted.
func (c *Converter) Lookups() int { return c.lookups }

// Skipped returns the currency pairs for which at least one conversion
// fell back to the original currency, sorted.
func (c *Converter) Skipped() []Pair {
	out := make([]Pair, 0, len(c.skipped))
	for p := range c.skipped {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}
