package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekspend/internal/cache"
	"weekspend/internal/core"
	"weekspend/internal/insights"
	"weekspend/internal/log"
	"weekspend/internal/ports"
	"weekspend/internal/storage/memory"
	"weekspend/internal/week"
)

func TestReportForWeek(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, in := range []NewExpense{
		{Amount: "600", Description: "Dinner", Category: "Eating Out", Date: "2025-01-06"},
		{Amount: "500", Description: "Lunch", Category: "Eating Out", Date: "2025-01-07"},
		{Amount: "2100", Description: "Fuel", Category: "Petrol", Date: "2025-01-08"},
		{Amount: "100", Description: "Bus", Category: "Commute", Date: "2025-01-12", IsSaving: true},
		{Amount: "999", Description: "Next week", Category: "Misc", Date: "2025-01-13"},
	} {
		_, err := f.expenses.Create(ctx, "u1", in)
		require.NoError(t, err)
	}

	r, err := f.weeks.Report(ctx, "u1", core.NewDate(2025, 1, 10))
	require.NoError(t, err)

	assert.Equal(t, "2025-01-06", week.ISODate(r.Window.Start))
	assert.Equal(t, "2025-01-12", week.ISODate(r.Window.End))
	assert.Equal(t, "2024-12-30", week.ISODate(r.Prev))
	assert.Equal(t, "2025-01-13", week.ISODate(r.Next))
	assert.True(t, r.IsCurrent)
	assert.Equal(t, "₹", r.Currency)
	assert.Len(t, r.Expenses, 4)
	assert.Len(t, r.Days, 7)
	assert.Len(t, r.Bars, 7)
	assert.Equal(t, int64(330000), r.Summary.Spent.Cents)
	assert.Equal(t, int64(10000), r.Summary.Saved.Cents)

	require.Len(t, r.Insights, 3)
	assert.Equal(t, insights.KindSavings, r.Insights[0].Kind)
	assert.Equal(t, insights.KindOptimization, r.Insights[1].Kind)
	assert.Equal(t, insights.KindPattern, r.Insights[2].Kind)
	assert.Equal(t, "Petrol", r.Insights[2].Category)
}

func TestReportUsesProfileCurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.expenses.Create(ctx, "u1", NewExpense{Amount: "2000", Description: "Fuel", Category: "Petrol"})
	require.NoError(t, err)

	r, err := f.weeks.Current(ctx, "u1")
	require.NoError(t, err)
	require.NotEmpty(t, r.Insights)
	assert.Contains(t, r.Insights[0].Message, "₹2000")

	_, err = f.profiles.Update(ctx, "u1", ProfileUpdate{Currency: "$"})
	require.NoError(t, err)

	r, err = f.weeks.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "$", r.Currency)
	assert.Contains(t, r.Insights[0].Message, "$2000")
}

func TestReportIsCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.weeks.Current(ctx, "u1")
	require.NoError(t, err)
	second, err := f.weeks.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, uint64(1), f.weeks.CacheStats().Hits)

	prev, err := f.weeks.Report(ctx, "u1", f.calendar.PreviousWeekStart())
	require.NoError(t, err)
	assert.False(t, prev.IsCurrent)
}

// stallingStore reads expenses, then holds the result until released, so a
// write can land between the read and the report being cached.
type stallingStore struct {
	ports.ExpenseStore
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (s *stallingStore) ListExpenses(ctx context.Context, userID string, from, to core.Date) ([]core.Expense, error) {
	out, err := s.ExpenseStore.ListExpenses(ctx, userID, from, to)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return out, err
}

func TestReportComputedDuringWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	stalling := &stallingStore{ExpenseStore: store, read: make(chan struct{}), release: make(chan struct{})}
	cal := week.NewCalendar(func() time.Time { return testNow }, time.UTC)
	profiles := NewProfileService(store, log.Discard())
	weeks := NewWeekService(stalling, profiles, insights.NewEngine(insights.DefaultThresholds()), cal,
		cache.NewLRUCache[*WeekReport](16, time.Hour), log.Discard())
	expenses := NewExpenseService(store, cal, log.Discard(), WithInvalidator(weeks))

	done := make(chan *WeekReport)
	go func() {
		r, err := weeks.Current(ctx, "u1")
		assert.NoError(t, err)
		done <- r
	}()

	<-stalling.read
	_, err := expenses.Create(ctx, "u1", NewExpense{Amount: "1200", Description: "Pizza", Category: "Eating Out"})
	require.NoError(t, err)
	close(stalling.release)

	stale := <-done
	require.NotNil(t, stale)
	assert.Empty(t, stale.Expenses)

	r, err := weeks.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, r.Expenses, 1)
	assert.NotEmpty(t, r.Insights)
}

func TestReportCurrentFlagFollowsClock(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	// Sunday 23:59, the last minute of the week starting 2025-01-06.
	now := time.Date(2025, 1, 12, 23, 59, 0, 0, time.UTC)
	cal := week.NewCalendar(func() time.Time { return now }, time.UTC)
	weeks := NewWeekService(store, NewProfileService(store, log.Discard()), nil, cal,
		cache.NewLRUCache[*WeekReport](16, time.Hour), log.Discard())

	monday := core.NewDate(2025, 1, 6)
	r, err := weeks.Report(ctx, "u1", monday)
	require.NoError(t, err)
	assert.True(t, r.IsCurrent)

	now = now.Add(2 * time.Minute)
	r, err = weeks.Report(ctx, "u1", monday)
	require.NoError(t, err)
	assert.False(t, r.IsCurrent, "last week is no longer current after the rollover")
	assert.Equal(t, uint64(1), weeks.CacheStats().Hits)

	r, err = weeks.Current(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, r.IsCurrent)
	assert.Equal(t, "2025-01-13", week.ISODate(r.Window.Start))
}
