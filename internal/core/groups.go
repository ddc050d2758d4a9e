package core

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// GroupByCategory joins expenses to their categories and sums amounts per
// category.
//
// The pipeline order matters: expenses are narrowed by the filter's date
// range first, joined and summed second, and only then is the sign filter
// applied to each group's total. Filtering individual expenses by sign
// before summing would corrupt the totals of categories that mix spend and
// income.
//
// An expense with an empty category reference is a MalformedRecordError. An
// expense whose referenced category is not in the given universe (e.g. the
// category was deleted) is excluded from every group and logged at warn
// level. When filter.CategoryID is set the category universe shrinks to that
// one id before joining; the sign filter still applies afterwards, so a
// single category can legitimately produce zero groups.
//
// Groups come back sorted alphabetically by category name so that repeated
// aggregations of the same data never reorder.
func GroupByCategory(expenses []Expense, categories []Category, filter Filter) ([]CategoryGroup, error) {
	universe := make(map[string]Category, len(categories))
	for _, c := range categories {
		if filter.CategoryID != "" && c.ID != filter.CategoryID {
			continue
		}
		universe[c.ID] = c
	}

	byID := make(map[string]*CategoryGroup)
	for _, e := range expenses {
		if strings.TrimSpace(e.CategoryID) == "" {
			return nil, &MalformedRecordError{ExpenseID: e.ID, Reason: "missing category reference"}
		}
		if !filter.InRange(e.CreatedAt) {
			continue
		}
		cat, ok := universe[e.CategoryID]
		if !ok {
			if filter.CategoryID == "" {
				slog.Warn("Expense references unknown category, excluded from grouping",
					"expense_id", e.ID, "category_id", e.CategoryID)
			}
			continue
		}
		g, ok := byID[cat.ID]
		if !ok {
			g = &CategoryGroup{Category: cat, Total: decimal.Zero}
			byID[cat.ID] = g
		}
		g.Total = g.Total.Add(e.Amount)
		g.Expenses = append(g.Expenses, e)
		g.Count++
	}

	groups := make([]CategoryGroup, 0, len(byID))
	for _, g := range byID {
		if !filter.MatchesTotal(g.Total) {
			continue
		}
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Category.Name < groups[j].Category.Name
	})
	return groups, nil
}

// NetTotal is the unconditioned signed sum of every expense's amount, used
// for the all-time net display.
func NetTotal(expenses []Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
