package book

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wesm/gcg/internal/currency"
)

// Digits kept when inverting a price quoted in the opposite direction.
const inversePrecision = 16

// priceSeries holds the prices usable for one conversion direction,
// sorted by date. Direct quotes are preferred over inverted ones.
type priceSeries struct {
	direct  []currency.Rate
	inverse []currency.Rate
}

// LookupRate implements currency.RateSource over the prices table.
// Prices for a pair are read once per Store and served from memory after.
func (s *Store) LookupRate(ctx context.Context, from, to string, asOf, earliest time.Time) (currency.Rate, bool, error) {
	series, err := s.priceSeries(ctx, from, to)
	if err != nil {
		return currency.Rate{}, false, err
	}
	if r, ok := latestIn(series.direct, asOf, earliest); ok {
		return r, true, nil
	}
	if r, ok := latestIn(series.inverse, asOf, earliest); ok {
		return r, true, nil
	}
	return currency.Rate{}, false, nil
}

// latestIn returns the last rate dated within [earliest, asOf].
func latestIn(rates []currency.Rate, asOf, earliest time.Time) (currency.Rate, bool) {
	asOf, earliest = Day(asOf), Day(earliest)
	// First index dated after asOf.
	i := sort.Search(len(rates), func(i int) bool { return rates[i].Date.After(asOf) })
	if i == 0 {
		return currency.Rate{}, false
	}
	r := rates[i-1]
	if r.Date.Before(earliest) {
		return currency.Rate{}, false
	}
	return r, true
}

func (s *Store) priceSeries(ctx context.Context, from, to string) (priceSeries, error) {
	key := currency.Pair{From: from, To: to}
	s.mu.Lock()
	if ps, ok := s.prices[key]; ok {
		s.mu.Unlock()
		return ps, nil
	}
	s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return priceSeries{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.date, p.value_num, p.value_denom, cf.mnemonic
		FROM prices p
		JOIN commodities cf ON cf.guid = p.commodity_guid
		JOIN commodities ct ON ct.guid = p.currency_guid
		WHERE (cf.mnemonic = ? AND ct.mnemonic = ?)
		   OR (cf.mnemonic = ? AND ct.mnemonic = ?)`, from, to, to, from)
	if err != nil {
		return priceSeries{}, fmt.Errorf("prices %s/%s: %w", from, to, err)
	}
	defer rows.Close()

	var ps priceSeries
	one := decimal.NewFromInt(1)
	for rows.Next() {
		var (
			date       string
			num, denom int64
			commodity  string
		)
		if err := rows.Scan(&date, &num, &denom, &commodity); err != nil {
			return priceSeries{}, fmt.Errorf("scan price: %w", err)
		}
		d, err := parseTime(date)
		if err != nil {
			s.logger.Debug("skipping price with bad date", "from", from, "to", to, "value", date)
			continue
		}
		v := ratio(num, denom)
		if v.IsZero() {
			continue
		}
		if commodity == from {
			ps.direct = append(ps.direct, currency.Rate{From: from, To: to, Date: d, Value: v})
		} else {
			ps.inverse = append(ps.inverse, currency.Rate{From: from, To: to, Date: d, Value: one.DivRound(v, inversePrecision)})
		}
	}
	if err := rows.Err(); err != nil {
		return priceSeries{}, fmt.Errorf("prices %s/%s: %w", from, to, err)
	}

	byDate := func(rates []currency.Rate) {
		sort.SliceStable(rates, func(i, j int) bool { return rates[i].Date.Before(rates[j].Date) })
	}
	byDate(ps.direct)
	byDate(ps.inverse)

	s.mu.Lock()
	s.prices[key] = ps
	s.mu.Unlock()
	return ps, nil
}
