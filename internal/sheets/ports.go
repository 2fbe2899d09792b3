// Package sheets defines the outbound export port for expenses.
package sheets

import (
	"context"

	"weekspend/internal/core"
)

// Header is the column layout of an exported expense row.
var Header = []string{"ID", "Date", "Day", "Description", "Category", "Amount", "Saving", "Tag"}

// ExpenseExporter appends one expense as a spreadsheet row and returns a
// reference to where it landed.
type ExpenseExporter interface {
	Append(ctx context.Context, e core.Expense) (rowRef string, err error)
}

// Row renders e in Header order. Amounts are plain decimal strings so the
// sheet applies its own locale formatting.
func Row(e core.Expense) []any {
	day := e.DayOfWeek
	if day == "" {
		day = e.Date.Weekday().String()
	}
	return []any{
		e.ID,
		e.Date.Format("2006-01-02"),
		day,
		e.Description,
		e.Category(),
		e.Amount.String(),
		e.Saving().String(),
		e.Tag,
	}
}
