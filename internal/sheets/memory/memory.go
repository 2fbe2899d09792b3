// Package memory is an in-process exporter used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"weekspend/internal/core"
	"weekspend/internal/sheets"
)

var _ sheets.ExpenseExporter = (*Exporter)(nil)

type Exporter struct {
	mu   sync.Mutex
	rows [][]any
	// fail, when set, is returned by Append.
	fail error
}

func New() *Exporter {
	return &Exporter{}
}

// Append records the row and returns a synthetic reference.
func (x *Exporter) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.fail != nil {
		return "", x.fail
	}
	x.rows = append(x.rows, sheets.Row(e))
	return fmt.Sprintf("mem:%d", len(x.rows)), nil
}

// Rows returns a copy of the exported rows.
func (x *Exporter) Rows() [][]any {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([][]any, len(x.rows))
	copy(out, x.rows)
	return out
}

// SetFailure makes Append return err until it is cleared with nil.
func (x *Exporter) SetFailure(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.fail = err
}
