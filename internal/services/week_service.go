package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"weekspend/internal/cache"
	"weekspend/internal/core"
	"weekspend/internal/insights"
	"weekspend/internal/log"
	"weekspend/internal/ports"
	"weekspend/internal/week"
)

// WeekReport is everything the week page and the week API render.
type WeekReport struct {
	Window    week.Window
	Prev      core.Date
	Next      core.Date
	IsCurrent bool
	Currency  string
	Days      []insights.DayGroup
	Summary   insights.Summary
	Bars      []insights.DayTotal
	Savings   []insights.DayTotal
	Breakdown []insights.Slice
	Insights  []insights.Insight
	Expenses  []core.Expense
}

// WeekService builds week reports and caches them per user and week.
type WeekService struct {
	expenses ports.ExpenseStore
	profiles *ProfileService
	engine   *insights.Engine
	calendar *week.Calendar
	cache    *cache.LRUCache[*WeekReport]
	logger   *log.Logger

	// gens counts invalidations per user. A report is only cached when no
	// invalidation happened while it was being computed.
	mu   sync.Mutex
	gens map[string]uint64
}

func NewWeekService(expenses ports.ExpenseStore, profiles *ProfileService, engine *insights.Engine, calendar *week.Calendar, reportCache *cache.LRUCache[*WeekReport], logger *log.Logger) *WeekService {
	if logger == nil {
		logger = log.Discard()
	}
	if reportCache == nil {
		reportCache = cache.NewLRUCache[*WeekReport](256, 5*time.Minute)
	}
	if calendar == nil {
		calendar = week.NewCalendar(nil, nil)
	}
	if engine == nil {
		engine = insights.NewEngine(insights.DefaultThresholds())
	}
	return &WeekService{
		expenses: expenses,
		profiles: profiles,
		engine:   engine,
		calendar: calendar,
		cache:    reportCache,
		logger:   logger.WithComponent(log.ComponentWeek),
		gens:     make(map[string]uint64),
	}
}

func reportKey(userID string, start core.Date) string {
	return reportPrefix(userID) + week.ISODate(start)
}

func reportPrefix(userID string) string {
	return "report:" + userID + ":"
}

// Calendar returns the calendar reports are computed against.
func (s *WeekService) Calendar() *week.Calendar {
	return s.calendar
}

// Current returns the report for the week containing today.
func (s *WeekService) Current(ctx context.Context, userID string) (*WeekReport, error) {
	return s.Report(ctx, userID, s.calendar.CurrentWeekStart())
}

// Report returns the report of the week containing start. Slices in the
// returned value are shared with the cache and must not be modified.
func (s *WeekService) Report(ctx context.Context, userID string, start core.Date) (*WeekReport, error) {
	r, err := s.cachedReport(ctx, userID, week.StartOf(start))
	if err != nil {
		return nil, err
	}
	out := *r
	out.IsCurrent = out.Window.Start.Equal(s.calendar.CurrentWeekStart())
	return &out, nil
}

func (s *WeekService) cachedReport(ctx context.Context, userID string, start core.Date) (*WeekReport, error) {
	key := reportKey(userID, start)
	if r, ok := s.cache.Get(key); ok {
		return r, nil
	}
	gen := s.generation(userID)

	window := week.WindowOf(start)
	var (
		expenses []core.Expense
		profile  core.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.expenses.ListExpenses(gctx, userID, window.Start, window.End)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		profile, err = s.profiles.Get(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := s.build(window, profile, expenses)
	s.mu.Lock()
	if s.gens[userID] == gen {
		s.cache.Set(key, r)
	}
	s.mu.Unlock()

	s.logger.Fields(ctx, slog.LevelDebug, "Computed week report", log.NewFields().
		WithUser(userID).
		WithWeek(week.ISODate(start)).
		WithOperation(log.OpReport))
	return r, nil
}

func (s *WeekService) build(window week.Window, profile core.Profile, expenses []core.Expense) *WeekReport {
	days := window.Days()
	currency := profile.Currency
	if currency == "" {
		currency = s.engine.Currency()
	}
	return &WeekReport{
		Window:    window,
		Prev:      week.Shift(window.Start, -1),
		Next:      week.Shift(window.Start, 1),
		Currency:  currency,
		Days:      insights.GroupByDay(days, expenses),
		Summary:   insights.Summarize(window, expenses),
		Bars:      insights.DailyTotals(days, expenses),
		Savings:   insights.DailySavings(days, expenses),
		Breakdown: insights.Breakdown(expenses),
		Insights:  s.engine.GenerateWithCurrency(expenses, currency),
		Expenses:  expenses,
	}
}

func (s *WeekService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID]
}

// Invalidate drops the cached report for one week.
func (s *WeekService) Invalidate(userID string, weekStart core.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[userID]++
	s.cache.Delete(reportKey(userID, week.StartOf(weekStart)))
}

// InvalidateUser drops every cached report of the user.
func (s *WeekService) InvalidateUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[userID]++
	s.cache.DeletePrefix(reportPrefix(userID))
}

// CacheStats reports hit and miss counters of the report cache.
func (s *WeekService) CacheStats() cache.Stats {
	return s.cache.Stats()
}
