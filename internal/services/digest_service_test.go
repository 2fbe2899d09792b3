package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekspend/internal/core"
	"weekspend/internal/log"
	"weekspend/internal/week"
)

func TestDigestRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, id := range []string{"u1", "u2"} {
		require.NoError(t, f.store.CreateUser(ctx, core.User{ID: id, Email: id + "@example.com", PasswordHash: "x"}))
	}

	// Previous week of testNow is 2024-12-30 .. 2025-01-05.
	_, err := f.expenses.Create(ctx, "u1", NewExpense{Amount: "1200", Description: "Dinner", Category: "Eating Out", Date: "2025-01-02"})
	require.NoError(t, err)
	_, err = f.expenses.Create(ctx, "u1", NewExpense{Amount: "50", Description: "This week", Date: "2025-01-07"})
	require.NoError(t, err)

	svc := NewDigestService(f.store, f.store, f.weeks, log.Discard())

	run, err := svc.Run(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, "2024-12-30", week.ISODate(run.WeekStart))
	assert.Equal(t, 2, run.Users)
	assert.Equal(t, 2, run.Created)

	digests, err := svc.List(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, digests, 1)
	assert.Equal(t, int64(120000), digests[0].Spent.Cents)
	require.NotEmpty(t, digests[0].Insights)
	assert.Equal(t, "savings", digests[0].Insights[0].Kind)

	run, err = svc.Run(ctx, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, run.Created)
	assert.Equal(t, 2, run.Skipped)
}
