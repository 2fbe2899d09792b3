package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// FallbackCategory is applied to expenses stored without a category.
const FallbackCategory = "Misc"

// MaxDescriptionLength bounds the free-text description of an expense.
const MaxDescriptionLength = 200

type (
	// Date is a civil calendar day, normalized to midnight UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID           int64
		UserID       string
		Amount       Money
		Description  string
		CategoryName string
		Tag          string
		Date         Date
		Time         string // HH:MM, optional
		DayOfWeek    string
		IsSaving     bool
		SavingAmount Money
		CreatedAt    time.Time
	}

	Category struct {
		ID        int64
		UserID    string
		Name      string
		Icon      string
		Color     string
		IsDefault bool
	}

	Profile struct {
		UserID             string
		Currency           string
		WeekStartDay       string
		MonthlySavingsGoal Money
		UpdatedAt          time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidTime        = errors.New("invalid time")
	ErrNotFound           = errors.New("not found")
)

var timeOfDay = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// AddDays returns the date n calendar days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Category returns the expense category, falling back to Misc.
func (e Expense) Category() string {
	if name := strings.TrimSpace(e.CategoryName); name != "" {
		return name
	}
	return FallbackCategory
}

// Saving returns the saved amount, zero unless the expense is flagged as a saving.
func (e Expense) Saving() Money {
	if !e.IsSaving {
		return Money{}
	}
	return e.SavingAmount
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.SavingAmount.Validate(); err != nil {
		return err
	}
	if e.Time != "" && !timeOfDay.MatchString(e.Time) {
		return ErrInvalidTime
	}
	return nil
}

// DefaultProfile returns the profile a user starts with.
func DefaultProfile(userID string) Profile {
	return Profile{
		UserID:       userID,
		Currency:     "₹",
		WeekStartDay: "monday",
	}
}
