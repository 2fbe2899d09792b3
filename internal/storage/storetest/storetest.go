// Package storetest holds behavioral tests shared by every ports.Store
// implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"weekspend/internal/core"
	"weekspend/internal/ports"
)

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) ports.Store) {
	t.Run("Expenses", func(t *testing.T) { testExpenses(t, newStore(t)) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("UsersAndSessions", func(t *testing.T) { testUsersAndSessions(t, newStore(t)) })
	t.Run("Digests", func(t *testing.T) { testDigests(t, newStore(t)) })
	t.Run("Sync", func(t *testing.T) { testSync(t, newStore(t)) })
}

func expense(user string, d core.Date, desc string, cents int64) core.Expense {
	return core.Expense{
		UserID:       user,
		Amount:       core.Money{Cents: cents},
		Description:  desc,
		CategoryName: "Misc",
		Date:         d,
		DayOfWeek:    d.Weekday().String(),
	}
}

func testExpenses(t *testing.T, s ports.Store) {
	ctx := context.Background()
	mon := core.NewDate(2025, 1, 6)

	saving := expense("u1", mon.AddDays(2), "skipped lunch", 0)
	saving.IsSaving = true
	saving.SavingAmount = core.Money{Cents: 15000}
	saving.CategoryName = "Eating Out"
	saving.Time = "13:05"
	saving.Tag = "Lunch"

	ids := make([]int64, 0, 4)
	for _, e := range []core.Expense{
		expense("u1", mon.AddDays(3), "later", 300),
		expense("u1", mon, "first", 100),
		saving,
		expense("u1", mon.AddDays(7), "next week", 999),
		expense("u2", mon, "other user", 500),
	} {
		created, err := s.CreateExpense(ctx, e)
		require.NoError(t, err)
		require.NotZero(t, created.ID)
		require.False(t, created.CreatedAt.IsZero())
		ids = append(ids, created.ID)
	}

	got, err := s.ListExpenses(ctx, "u1", mon, mon.AddDays(6))
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "first", got[0].Description)
	require.Equal(t, "skipped lunch", got[1].Description)
	require.Equal(t, "later", got[2].Description)

	s1 := got[1]
	require.True(t, s1.IsSaving)
	require.Equal(t, int64(15000), s1.SavingAmount.Cents)
	require.Equal(t, "Eating Out", s1.CategoryName)
	require.Equal(t, "13:05", s1.Time)
	require.Equal(t, "Lunch", s1.Tag)
	require.Equal(t, "Wednesday", s1.DayOfWeek)
	require.True(t, s1.Date.Equal(mon.AddDays(2)))

	one, err := s.GetExpense(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, int64(300), one.Amount.Cents)

	require.ErrorIs(t, s.DeleteExpense(ctx, "u2", ids[0]), core.ErrNotFound)
	require.NoError(t, s.DeleteExpense(ctx, "u1", ids[0]))
	_, err = s.GetExpense(ctx, ids[0])
	require.ErrorIs(t, err, core.ErrNotFound)

	got, err = s.ListExpenses(ctx, "u1", mon, mon.AddDays(6))
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func testCategories(t *testing.T, s ports.Store) {
	ctx := context.Background()
	got, err := s.ListCategories(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, got)

	cats := []core.Category{
		{Name: "Eating Out", Icon: "🍴", Color: "#ef4444", IsDefault: true},
		{Name: "Misc", Icon: "📦", Color: "#6b7280", IsDefault: true},
	}
	require.NoError(t, s.CreateCategories(ctx, "u1", cats))
	require.NoError(t, s.CreateCategories(ctx, "u1", cats[:1]))

	got, err = s.ListCategories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Eating Out", got[0].Name)
	require.Equal(t, "u1", got[0].UserID)
	require.True(t, got[0].IsDefault)

	other, err := s.ListCategories(ctx, "u2")
	require.NoError(t, err)
	require.Empty(t, other)
}

func testProfiles(t *testing.T, s ports.Store) {
	ctx := context.Background()
	_, err := s.GetProfile(ctx, "u1")
	require.ErrorIs(t, err, core.ErrNotFound)

	p := core.DefaultProfile("u1")
	require.NoError(t, s.UpsertProfile(ctx, p))
	p.Currency = "€"
	p.MonthlySavingsGoal = core.MoneyFromUnits(5000)
	require.NoError(t, s.UpsertProfile(ctx, p))

	got, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "€", got.Currency)
	require.Equal(t, "monday", got.WeekStartDay)
	require.Equal(t, int64(500000), got.MonthlySavingsGoal.Cents)
}

func testUsersAndSessions(t *testing.T, s ports.Store) {
	ctx := context.Background()
	u := core.User{ID: "6f0c6a4e-0000-4000-8000-000000000001", Email: "a@example.com", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, u))
	require.ErrorIs(t, s.CreateUser(ctx, core.User{ID: "other", Email: "A@example.com", PasswordHash: "x"}), core.ErrConflict)

	got, err := s.GetUserByEmail(ctx, "A@Example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "hash", got.PasswordHash)

	_, err = s.GetUserByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, core.ErrNotFound)

	ids, err := s.ListUserIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{u.ID}, ids)

	now := time.Now().UTC().Truncate(time.Second)
	sess := core.Session{Token: "tok", UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, s.CreateSession(ctx, sess))

	gotSess, err := s.GetSession(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, u.ID, gotSess.UserID)
	require.True(t, gotSess.ExpiresAt.Equal(sess.ExpiresAt))

	require.NoError(t, s.DeleteSession(ctx, "tok"))
	_, err = s.GetSession(ctx, "tok")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testDigests(t *testing.T, s ports.Store) {
	ctx := context.Background()
	w1 := core.NewDate(2025, 1, 6)
	w2 := w1.AddDays(7)
	d := core.Digest{
		UserID:    "u1",
		WeekStart: w1,
		Spent:     core.MoneyFromUnits(1200),
		Saved:     core.MoneyFromUnits(50),
		Insights: []core.InsightRecord{
			{Kind: "savings", Category: "Eating Out", Message: "m", Action: "Apply suggestion?"},
		},
	}
	require.NoError(t, s.SaveDigest(ctx, d))
	require.ErrorIs(t, s.SaveDigest(ctx, d), core.ErrConflict)

	d.WeekStart = w2
	d.Insights = nil
	require.NoError(t, s.SaveDigest(ctx, d))

	got, err := s.ListDigests(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, got[0].WeekStart.Equal(w2))
	require.True(t, got[1].WeekStart.Equal(w1))
	require.Len(t, got[1].Insights, 1)
	require.Equal(t, "Eating Out", got[1].Insights[0].Category)
	require.Equal(t, int64(120000), got[1].Spent.Cents)

	limited, err := s.ListDigests(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func testSync(t *testing.T, s ports.Store) {
	ctx := context.Background()
	mon := core.NewDate(2025, 1, 6)
	a, err := s.CreateExpense(ctx, expense("u1", mon, "a", 100))
	require.NoError(t, err)
	b, err := s.CreateExpense(ctx, expense("u1", mon, "b", 200))
	require.NoError(t, err)

	pending, err := s.PendingExports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, a.ID, pending[0].ID)
	require.Equal(t, "u1", pending[0].UserID)
	require.Equal(t, int64(1), pending[0].Version)

	status, err := s.SyncStatus(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, core.SyncPending, status)

	require.NoError(t, s.MarkSynced(ctx, a.ID))
	require.NoError(t, s.MarkSyncError(ctx, b.ID))

	status, err = s.SyncStatus(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, core.SyncDone, status)
	status, err = s.SyncStatus(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, core.SyncError, status)
	_, err = s.SyncStatus(ctx, 999999)
	require.ErrorIs(t, err, core.ErrNotFound)

	pending, err = s.PendingExports(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.ErrorIs(t, s.MarkSynced(ctx, 999999), core.ErrNotFound)
}
