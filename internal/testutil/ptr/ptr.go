// Package ptr provides value and pointer helpers for query fixtures.
package ptr

import (
	"time"

	"github.com/shopspring/decimal"
)

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Decimal parses s and returns a pointer to it; it panics on bad input.
func Decimal(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
