package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ColourBlue    Colour = "blue"
	ColourEmerald Colour = "emerald"
	ColourViolet  Colour = "violet"
	ColourAmber   Colour = "amber"
	ColourCyan    Colour = "cyan"
	ColourPink    Colour = "pink"
	ColourLime    Colour = "lime"
	ColourFuchsia Colour = "fuchsia"
)

type (
	// Colour is one of the fixed category palette values.
	Colour string

	// Category groups expenses under a user-chosen name and colour.
	Category struct {
		ID     string
		Name   string
		Colour Colour
	}

	// Expense is a single signed transaction. Negative amounts are spend,
	// positive amounts are income. Amount is always normalized to two
	// fraction digits.
	Expense struct {
		ID          string
		Description string
		Amount      decimal.Decimal
		CategoryID  string
		CreatedAt   time.Time
	}

	// CategoryGroup is a category joined with its matching expenses and
	// their signed total. Computed fresh on every aggregation, never
	// mutated in place.
	CategoryGroup struct {
		Category Category
		Total    decimal.Decimal
		Expenses []Expense
		Count    int
	}

	// TimeBucketGroup is one chart bucket (a weekday, "Week N" or a month
	// abbreviation) with the signed sum of the expenses that fall into it.
	TimeBucketGroup struct {
		Label string
		Total decimal.Decimal
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidColour    = errors.New("invalid colour")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyCategory    = errors.New("empty category reference")
)

// MalformedRecordError reports an expense that cannot take part in an
// aggregation, e.g. one missing its category reference.
type MalformedRecordError struct {
	ExpenseID string
	Reason    string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed expense %s: %s", e.ExpenseID, e.Reason)
}

// Colours lists the closed palette in display order.
func Colours() []Colour {
	return []Colour{
		ColourBlue, ColourEmerald, ColourViolet, ColourAmber,
		ColourCyan, ColourPink, ColourLime, ColourFuchsia,
	}
}

// ParseColour validates a colour name against the palette.
func ParseColour(s string) (Colour, error) {
	c := Colour(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Colours() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidColour, s)
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if _, err := ParseColour(string(c.Colour)); err != nil {
		return err
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if strings.TrimSpace(e.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if e.CreatedAt.IsZero() {
		return ErrInvalidDate
	}
	if e.Amount.Exponent() < -2 {
		return fmt.Errorf("%w: more than two fraction digits", ErrInvalidAmount)
	}
	return nil
}
