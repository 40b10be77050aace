// Package currency resolves display currencies and converts amounts using
// historical exchange rates.
package currency

import (
	"fmt"
	"strings"
)

// Mode selects how amounts are displayed.
type Mode int

const (
	// ModeAuto converts to the base currency only when the candidate
	// accounts span more than one currency.
	ModeAuto Mode = iota
	// ModeBase always converts to the base currency.
	ModeBase
	// ModeAccount shows each amount in its account's currency.
	ModeAccount
	// ModeSplit is reserved for a per-split override; it currently
	// behaves like ModeAccount.
	ModeSplit
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeBase:
		return "base"
	case ModeAccount:
		return "account"
	case ModeSplit:
		return "split"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name as accepted by --currency.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "base":
		return ModeBase, nil
	case "account":
		return ModeAccount, nil
	case "split":
		return ModeSplit, nil
	}
	return ModeAuto, fmt.Errorf("invalid currency mode %q (want auto, base, account or split)", s)
}

// DisplayCurrency returns the currency rows should be converted to, or
// ok=false when each row stays in its own currency.
//
// In auto mode the decision looks at the currencies of the candidate
// accounts, not of the rows that end up matching.
func DisplayCurrency(mode Mode, candidateCurrencies []string, base string) (target string, ok bool) {
	switch mode {
	case ModeBase:
		return base, true
	case ModeAccount, ModeSplit:
		return "", false
	}

	seen := make(map[string]struct{}, 2)
	for _, c := range candidateCurrencies {
		if c == "" {
			continue
		}
		seen[c] = struct{}{}
		if len(seen) > 1 {
			return base, true
		}
	}
	return "", false
}
