// Package core holds the domain model and the aggregation engine.
//
// This file contains amount parsing and normalization. Every amount that
// enters the system from user input goes through NormalizeAmount before it
// is stored or summed.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to a signed amount truncated to two
// fraction digits. Truncation, not rounding: "3.456" becomes 3.45. Returns
// ErrInvalidAmount for anything that is not a plain decimal number.
//
// Examples:
//
//	ParseAmount("-12.34") -> -12.34, nil
//	ParseAmount("3.456")  -> 3.45, nil
//	ParseAmount("007.5")  -> 7.50, nil
//	ParseAmount("--")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Truncate(2), nil
}

// NormalizeAmount is the forgiving boundary form of ParseAmount: it always
// produces a two-fraction-digit string, mapping malformed input ("", "-",
// "--", garbage) to "0.00". It is idempotent.
//
// Examples:
//
//	NormalizeAmount("-5")    -> "-5.00"
//	NormalizeAmount("3.456") -> "3.45"
//	NormalizeAmount("")      -> "0.00"
//	NormalizeAmount("-")     -> "0.00"
func NormalizeAmount(s string) string {
	d, err := ParseAmount(s)
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

// FormatAmount renders an amount with exactly two fraction digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
