package insights

import (
	"testing"

	"weekspend/internal/core"
	"weekspend/internal/week"
)

func on(d core.Date, category string, units int64) core.Expense {
	e := exp(category, units)
	e.Date = d
	return e
}

func TestCategoryTotalsStableDescending(t *testing.T) {
	got := CategoryTotals([]core.Expense{
		exp("Groceries", 100),
		exp("Movie", 300),
		exp("Bills", 100),
		exp("", 50),
		exp("Groceries", 200),
	})
	want := []struct {
		cat   string
		units int64
	}{{"Groceries", 300}, {"Movie", 300}, {"Bills", 100}, {"Misc", 50}}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i, w := range want {
		if got[i].Category != w.cat || got[i].Amount != core.MoneyFromUnits(w.units) {
			t.Fatalf("totals[%d] = %+v, want %s %d", i, got[i], w.cat, w.units)
		}
	}
}

func TestDailyTotalsAndSavings(t *testing.T) {
	start := core.NewDate(2025, 1, 6)
	days := week.Days(start)
	s := on(start.AddDays(2), "Misc", 40)
	s.IsSaving = true
	s.SavingAmount = core.MoneyFromUnits(15)
	expenses := []core.Expense{
		on(start, "Movie", 250),
		on(start, "Petrol", 100),
		s,
		on(start.AddDays(9), "Bills", 999), // outside the week
	}

	spent := DailyTotals(days, expenses)
	if len(spent) != 7 || spent[0].Label != "Mon" || spent[6].Label != "Sun" {
		t.Fatalf("bad labels: %+v", spent)
	}
	if spent[0].Amount != core.MoneyFromUnits(350) || spent[2].Amount != core.MoneyFromUnits(40) || !spent[1].Amount.IsZero() {
		t.Fatalf("bad spent totals: %+v", spent)
	}

	saved := DailySavings(days, expenses)
	if saved[2].Amount != core.MoneyFromUnits(15) || !saved[0].Amount.IsZero() {
		t.Fatalf("bad saved totals: %+v", saved)
	}
}

func TestSummarize(t *testing.T) {
	start := core.NewDate(2025, 1, 6)
	w := week.WindowOf(start)
	saving := on(start.AddDays(3), "Misc", 100)
	saving.IsSaving = true
	saving.SavingAmount = core.MoneyFromUnits(70)

	s := Summarize(w, []core.Expense{
		on(start, "Movie", 200),
		on(start.AddDays(1), "Bills", 300),
		on(start.AddDays(5), "Petrol", 300),
		saving,
	})
	if s.Spent != core.MoneyFromUnits(900) {
		t.Fatalf("spent = %s", s.Spent)
	}
	if s.Saved != core.MoneyFromUnits(70) {
		t.Fatalf("saved = %s", s.Saved)
	}
	if s.AvgPerDay.Cents != 12857 {
		t.Fatalf("avg = %d", s.AvgPerDay.Cents)
	}
	if s.HighestDay == nil || !s.HighestDay.Date.Equal(start.AddDays(1)) {
		t.Fatalf("highest = %+v", s.HighestDay)
	}
}

func TestSummarizeEmptyHasNoHighestDay(t *testing.T) {
	s := Summarize(week.WindowOf(core.NewDate(2025, 1, 6)), nil)
	if s.HighestDay != nil || !s.Spent.IsZero() || !s.AvgPerDay.IsZero() {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestBreakdown(t *testing.T) {
	got := Breakdown([]core.Expense{
		cents("Movie", 24950),
		exp("Groceries", 750),
		cents("Movie", 1),
	})
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Name != "Movie" || got[0].Value != 250 || got[0].Color != Palette[0] || got[0].Percent != 25 {
		t.Fatalf("slice 0 = %+v", got[0])
	}
	if got[1].Name != "Groceries" || got[1].Value != 750 || got[1].Color != Palette[1] || got[1].Percent != 75 {
		t.Fatalf("slice 1 = %+v", got[1])
	}
	if len(Breakdown(nil)) != 0 {
		t.Fatal("expected empty breakdown")
	}
}

func TestGroupByDay(t *testing.T) {
	start := core.NewDate(2025, 1, 6)
	groups := GroupByDay(week.Days(start), []core.Expense{
		on(start.AddDays(6), "Movie", 10),
		on(start.AddDays(6), "Bills", 20),
		on(start, "Petrol", 5),
	})
	if len(groups) != 7 || groups[0].Name != "Monday" || groups[6].Name != "Sunday" {
		t.Fatalf("bad groups")
	}
	if len(groups[6].Expenses) != 2 || groups[6].Expenses[0].CategoryName != "Movie" {
		t.Fatalf("sunday = %+v", groups[6])
	}
	if groups[6].Spent != core.MoneyFromUnits(30) || len(groups[3].Expenses) != 0 {
		t.Fatalf("unexpected totals")
	}
}
