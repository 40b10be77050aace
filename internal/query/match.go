package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// ErrInvalidPattern is wrapped by InvalidPatternError.
var ErrInvalidPattern = errors.New("invalid pattern")

// InvalidPatternError reports a regular expression that does not compile.
type InvalidPatternError struct {
	Selector string // "account" or "text"
	Pattern  string
	Err      error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid %s pattern %q: %v", e.Selector, e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() []error {
	return []error{ErrInvalidPattern, e.Err}
}

// matcher reports whether a pattern occurs anywhere in a string.
type matcher func(s string) bool

// newMatcher compiles pattern once. Literal patterns are substring
// matches; case-insensitive literals compare Unicode case-folded text.
// Regex patterns use search semantics, not a full match.
func newMatcher(selector, pattern string, regex, caseSensitive bool) (matcher, error) {
	if pattern == "" {
		return func(string) bool { return true }, nil
	}
	if regex {
		expr := pattern
		if !caseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, &InvalidPatternError{Selector: selector, Pattern: pattern, Err: err}
		}
		return re.MatchString, nil
	}
	if caseSensitive {
		return func(s string) bool { return strings.Contains(s, pattern) }, nil
	}
	// A Caser keeps state; each matcher owns one.
	fold := cases.Fold()
	needle := fold.String(pattern)
	return func(s string) bool { return strings.Contains(fold.String(s), needle) }, nil
}

// ValidateSelector compiles the account pattern of sel.
func ValidateSelector(sel AccountSelector) error {
	_, err := newMatcher("account", sel.Pattern, sel.Regex, sel.CaseSensitive)
	return err
}

// ValidatePatterns compiles every pattern of q so a bad regex is reported
// before the book is touched.
func ValidatePatterns(q Query) error {
	if err := ValidateSelector(q.Account); err != nil {
		return err
	}
	if q.Restrict != nil {
		if err := ValidateSelector(*q.Restrict); err != nil {
			return err
		}
	}
	if _, err := newMatcher("text", q.Text.Pattern, q.Text.Regex, q.Text.CaseSensitive); err != nil {
		return err
	}
	return nil
}
