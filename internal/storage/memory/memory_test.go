package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"weekspend/internal/core"
	"weekspend/internal/ports"
	"weekspend/internal/storage/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) ports.Store { return New() })
}

func TestCreateExpenseValidates(t *testing.T) {
	_, err := New().CreateExpense(context.Background(), core.Expense{Description: "x"})
	require.ErrorIs(t, err, core.ErrInvalidDate)
}
