// Package sheets declares the outbound port for exporting expenses to a
// spreadsheet.
package sheets

import (
	"context"

	"tally/internal/core"
)

// ExpenseAppender appends one expense row to an external sheet. The sheet
// is an append-only export log; updates produce a fresh row for the new
// revision and deletions are not propagated.
type ExpenseAppender interface {
	AppendExpense(ctx context.Context, e core.Expense, category core.Category) (rowRef string, err error)
}
