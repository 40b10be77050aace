package book

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GnuCash has written timestamps in two layouts over the years.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"20060102150405",
	"2006-01-02",
}

// parseTime parses a GnuCash timestamp column and returns the UTC day.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Day truncates t to midnight UTC of its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ratio converts a GnuCash num/denom pair to an exact decimal.
// Power-of-ten denominators (the common case) are converted exactly.
func ratio(num, denom int64) decimal.Decimal {
	if denom == 0 {
		return decimal.Zero
	}
	if exp, ok := log10(denom); ok {
		return decimal.New(num, -exp)
	}
	return decimal.NewFromInt(num).DivRound(decimal.NewFromInt(denom), 16)
}

func log10(n int64) (int32, bool) {
	var exp int32
	for n > 1 {
		if n%10 != 0 {
			return 0, false
		}
		n /= 10
		exp++
	}
	return exp, n == 1
}
