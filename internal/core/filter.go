package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// SignAny disables the sign filter entirely.
	SignAny Sign = iota
	// SignExpense keeps groups whose total is zero or negative.
	SignExpense
	// SignIncome keeps groups whose total is zero or positive.
	SignIncome
)

// Sign selects which side of zero a group's total must fall on. The zero
// total matches both sides.
type Sign int

func (s Sign) String() string {
	switch s {
	case SignExpense:
		return "expense"
	case SignIncome:
		return "income"
	default:
		return "any"
	}
}

// Filter is the immutable set of parameters that scopes an aggregation or a
// repository query. It is passed explicitly to every call that needs it; the
// zero value means "everything". From/To are inclusive calendar-day bounds; a
// zero bound disables that side of the range. No validation is performed: an
// out-of-order range simply matches nothing.
type Filter struct {
	Sign       Sign
	From       time.Time
	To         time.Time
	CategoryID string
}

// InRange reports whether a creation timestamp passes the filter's date
// bounds. Comparison is on whole local calendar days.
func (f Filter) InRange(t time.Time) bool {
	day := Day(t)
	if !f.From.IsZero() && day.Before(Day(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(Day(f.To)) {
		return false
	}
	return true
}

// MatchesTotal applies the sign filter to a computed group total.
func (f Filter) MatchesTotal(total decimal.Decimal) bool {
	switch f.Sign {
	case SignExpense:
		return total.Sign() <= 0
	case SignIncome:
		return total.Sign() >= 0
	default:
		return true
	}
}
