// Package services holds the application layer between the HTTP surface and
// the stores.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"weekspend/internal/core"
	"weekspend/internal/log"
	"weekspend/internal/ports"
	"weekspend/internal/week"
)

// NewExpense is the raw input of an expense form or API call.
type NewExpense struct {
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Tag          string `json:"tag"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	IsSaving     bool   `json:"is_saving"`
	SavingAmount string `json:"saving_amount"`
}

// Publisher enqueues an expense for export.
type Publisher interface {
	PublishExpenseExport(ctx context.Context, id int64, userID string, version int64) error
}

// ReportInvalidator drops cached week reports.
type ReportInvalidator interface {
	Invalidate(userID string, weekStart core.Date)
	InvalidateUser(userID string)
}

// ExpenseService validates and stores expenses, then fans out to the report
// cache and the export queue.
type ExpenseService struct {
	store     ports.ExpenseStore
	calendar  *week.Calendar
	publisher Publisher
	reports   ReportInvalidator
	logger    *log.Logger
	events    *log.StructuredLogger
}

type ExpenseOption func(*ExpenseService)

// WithPublisher enables export messages after each create.
func WithPublisher(p Publisher) ExpenseOption {
	return func(s *ExpenseService) { s.publisher = p }
}

// WithInvalidator drops cached reports affected by a write.
func WithInvalidator(r ReportInvalidator) ExpenseOption {
	return func(s *ExpenseService) { s.reports = r }
}

func NewExpenseService(store ports.ExpenseStore, calendar *week.Calendar, logger *log.Logger, opts ...ExpenseOption) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	if calendar == nil {
		calendar = week.NewCalendar(nil, nil)
	}
	logger = logger.WithComponent(log.ComponentExpense)
	s := &ExpenseService{
		store:    store,
		calendar: calendar,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build turns raw input into a validated expense without storing it.
func (s *ExpenseService) Build(userID string, in NewExpense) (core.Expense, error) {
	amount, err := core.ParseMoney(in.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	if amount.Cents <= 0 {
		return core.Expense{}, core.ErrInvalidAmount
	}

	date := s.calendar.Today()
	if strings.TrimSpace(in.Date) != "" {
		if date, err = week.ParseISODate(in.Date); err != nil {
			return core.Expense{}, err
		}
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = core.FallbackCategory
	}

	var saving core.Money
	if in.IsSaving {
		saving = amount
		if strings.TrimSpace(in.SavingAmount) != "" {
			if saving, err = core.ParseMoney(in.SavingAmount); err != nil {
				return core.Expense{}, err
			}
		}
	}

	e := core.Expense{
		UserID:       userID,
		Amount:       amount,
		Description:  strings.TrimSpace(in.Description),
		CategoryName: category,
		Tag:          strings.TrimSpace(in.Tag),
		Date:         date,
		Time:         strings.TrimSpace(in.Time),
		DayOfWeek:    week.DayOfWeekName(date),
		IsSaving:     in.IsSaving,
		SavingAmount: saving,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// Create validates and stores an expense. Export publishing is best effort.
func (s *ExpenseService) Create(ctx context.Context, userID string, in NewExpense) (core.Expense, error) {
	e, err := s.Build(userID, in)
	if err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.invalidate(userID, saved.Date)
	s.events.LogExpenseCreated(ctx, userID, saved.ID, saved.Description, saved.Amount.Cents, saved.CategoryName)

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseExport(ctx, saved.ID, userID, 1); err != nil {
			s.events.LogError(ctx, "Failed to publish export message", err, log.OpExport,
				log.NewFields().WithUser(userID).WithErrorType(log.ErrorTypeNetwork))
		}
	}
	return saved, nil
}

// Delete removes one of the user's expenses.
func (s *ExpenseService) Delete(ctx context.Context, userID string, id int64) error {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if e.UserID != userID {
		return core.ErrNotFound
	}
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete expense: %w", err)
	}
	s.invalidate(userID, e.Date)
	s.logger.InfoContext(ctx, "Expense deleted", log.FieldUserID, userID, log.FieldExpenseID, id)
	return nil
}

func (s *ExpenseService) invalidate(userID string, d core.Date) {
	if s.reports != nil {
		s.reports.Invalidate(userID, week.StartOf(d))
	}
}
