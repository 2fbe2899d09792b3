package insights

import (
	"slices"

	"github.com/shopspring/decimal"

	"weekspend/internal/core"
	"weekspend/internal/week"
)

// Palette colors category slices in first-seen order.
var Palette = []string{"#ef4444", "#10b981", "#3b82f6", "#f59e0b", "#8b5cf6", "#6366f1", "#6b7280"}

var seven = decimal.NewFromInt(week.Length)

type (
	CategoryTotal struct {
		Category string     `json:"category"`
		Amount   core.Money `json:"-"`
	}

	DayTotal struct {
		Date   core.Date  `json:"-"`
		Label  string     `json:"day"`
		Amount core.Money `json:"-"`
	}

	// Summary is the headline figures for one week.
	Summary struct {
		Spent      core.Money
		Saved      core.Money
		AvgPerDay  core.Money
		HighestDay *DayTotal // nil when nothing was spent
	}

	// Slice is one wedge of the category breakdown chart.
	Slice struct {
		Name    string `json:"name"`
		Value   int64  `json:"value"`
		Percent int64  `json:"percent"`
		Color   string `json:"color"`
	}

	// DayGroup lists the expenses of one day of the window.
	DayGroup struct {
		Date     core.Date
		Name     string
		Expenses []core.Expense
		Spent    core.Money
		Saved    core.Money
	}
)

// CategoryTotals sums spending per category. The result is ordered by
// descending amount; equal amounts keep the order in which their category
// first appeared.
func CategoryTotals(expenses []core.Expense) []CategoryTotal {
	totals := firstSeenTotals(expenses)
	slices.SortStableFunc(totals, func(a, b CategoryTotal) int {
		switch {
		case a.Amount.Cents > b.Amount.Cents:
			return -1
		case a.Amount.Cents < b.Amount.Cents:
			return 1
		}
		return 0
	})
	return totals
}

func firstSeenTotals(expenses []core.Expense) []CategoryTotal {
	index := make(map[string]int)
	var totals []CategoryTotal
	for _, e := range expenses {
		cat := e.Category()
		i, ok := index[cat]
		if !ok {
			i = len(totals)
			index[cat] = i
			totals = append(totals, CategoryTotal{Category: cat})
		}
		totals[i].Amount = totals[i].Amount.Add(e.Amount)
	}
	return totals
}

// DailyTotals returns spending for each of days, labelled Mon..Sun by
// position. Expenses outside days are ignored.
func DailyTotals(days []core.Date, expenses []core.Expense) []DayTotal {
	return perDay(days, expenses, func(e core.Expense) core.Money { return e.Amount })
}

// DailySavings is DailyTotals over saving amounts.
func DailySavings(days []core.Date, expenses []core.Expense) []DayTotal {
	return perDay(days, expenses, core.Expense.Saving)
}

func perDay(days []core.Date, expenses []core.Expense, value func(core.Expense) core.Money) []DayTotal {
	out := make([]DayTotal, len(days))
	index := make(map[string]int, len(days))
	for i, d := range days {
		out[i] = DayTotal{Date: d, Label: week.ShortDayName(i)}
		index[week.ISODate(d)] = i
	}
	for _, e := range expenses {
		if i, ok := index[week.ISODate(e.Date)]; ok {
			out[i].Amount = out[i].Amount.Add(value(e))
		}
	}
	return out
}

// Summarize computes the headline figures for the expenses inside w.
func Summarize(w week.Window, expenses []core.Expense) Summary {
	var s Summary
	for _, e := range expenses {
		if !w.Contains(e.Date) {
			continue
		}
		s.Spent = s.Spent.Add(e.Amount)
		s.Saved = s.Saved.Add(e.Saving())
	}
	avg := s.Spent.Decimal().Div(seven).Round(2)
	s.AvgPerDay = core.Money{Cents: avg.Shift(2).IntPart()}

	for _, d := range DailyTotals(w.Days(), expenses) {
		if d.Amount.Cents > 0 && (s.HighestDay == nil || d.Amount.Cents > s.HighestDay.Amount.Cents) {
			day := d
			s.HighestDay = &day
		}
	}
	return s
}

// Breakdown returns chart slices per category in first-seen order, values
// rounded to whole units.
func Breakdown(expenses []core.Expense) []Slice {
	totals := firstSeenTotals(expenses)
	var sum int64
	for _, t := range totals {
		sum += t.Amount.Cents
	}
	out := make([]Slice, len(totals))
	for i, t := range totals {
		var pct int64
		if sum > 0 {
			pct = decimal.NewFromInt(t.Amount.Cents * 100).Div(decimal.NewFromInt(sum)).Round(0).IntPart()
		}
		out[i] = Slice{
			Name:    t.Category,
			Value:   t.Amount.RoundUnits(),
			Percent: pct,
			Color:   Palette[i%len(Palette)],
		}
	}
	return out
}

// GroupByDay buckets expenses under each of days, preserving input order
// within a day.
func GroupByDay(days []core.Date, expenses []core.Expense) []DayGroup {
	out := make([]DayGroup, len(days))
	index := make(map[string]int, len(days))
	for i, d := range days {
		out[i] = DayGroup{Date: d, Name: week.DayOfWeekName(d)}
		index[week.ISODate(d)] = i
	}
	for _, e := range expenses {
		i, ok := index[week.ISODate(e.Date)]
		if !ok {
			continue
		}
		g := &out[i]
		g.Expenses = append(g.Expenses, e)
		g.Spent = g.Spent.Add(e.Amount)
		g.Saved = g.Saved.Add(e.Saving())
	}
	return out
}
