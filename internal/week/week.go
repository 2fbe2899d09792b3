// Package week implements Monday-based week arithmetic over calendar dates.
//
// All functions are pure over core.Date values. Only Calendar looks at the
// clock, and it resolves "today" in its own location so that callers get the
// local calendar day rather than the UTC one.
package week

import (
	"strings"
	"time"

	"weekspend/internal/core"
)

// Length is the number of days in a week window.
const Length = 7

const isoLayout = "2006-01-02"

var shortDays = [Length]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Window is an inclusive 7-day range starting on a Monday.
type Window struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
}

// Calendar resolves the current week from a clock and a location.
type Calendar struct {
	now func() time.Time
	loc *time.Location
}

// NewCalendar returns a calendar reading now in loc. A nil clock uses
// time.Now and a nil location uses time.Local.
func NewCalendar(now func() time.Time, loc *time.Location) *Calendar {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{now: now, loc: loc}
}

// Today returns the current calendar day in the calendar's location.
func (c *Calendar) Today() core.Date {
	return c.DateOf(c.now())
}

// DateOf returns the calendar day of t in the calendar's location.
func (c *Calendar) DateOf(t time.Time) core.Date {
	return core.DateOf(t.In(c.loc))
}

// Now returns the calendar's current instant.
func (c *Calendar) Now() time.Time {
	return c.now()
}

// CurrentWeekStart returns the Monday of the week containing today.
func (c *Calendar) CurrentWeekStart() core.Date {
	return StartOf(c.Today())
}

// PreviousWeekStart returns the Monday seven days before CurrentWeekStart.
func (c *Calendar) PreviousWeekStart() core.Date {
	return Shift(c.CurrentWeekStart(), -1)
}

// StartOf returns the Monday of the week containing d. Sunday belongs to
// the week that started six days earlier.
func StartOf(d core.Date) core.Date {
	wd := int(d.Weekday())
	offset := 1 - wd
	if wd == 0 {
		offset = -6
	}
	return d.AddDays(offset)
}

// Shift moves reference by deltaWeeks whole weeks.
func Shift(reference core.Date, deltaWeeks int) core.Date {
	return reference.AddDays(Length * deltaWeeks)
}

// WindowOf returns the inclusive window [start, start+6].
func WindowOf(start core.Date) Window {
	return Window{Start: start, End: start.AddDays(Length - 1)}
}

// Days returns the seven ascending dates of the week starting at start.
func Days(start core.Date) []core.Date {
	days := make([]core.Date, Length)
	for i := range days {
		days[i] = start.AddDays(i)
	}
	return days
}

// Days returns the seven dates of the window.
func (w Window) Days() []core.Date {
	return Days(w.Start)
}

// Contains reports whether d falls inside the window, bounds included.
func (w Window) Contains(d core.Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// ISODate formats d as YYYY-MM-DD.
func ISODate(d core.Date) string {
	return d.Format(isoLayout)
}

// ParseISODate parses a YYYY-MM-DD string.
func ParseISODate(s string) (core.Date, error) {
	t, err := time.Parse(isoLayout, strings.TrimSpace(s))
	if err != nil {
		return core.Date{}, core.ErrInvalidDate
	}
	return core.Date{Time: t}, nil
}

// DisplayDate renders a short label such as "Jan 5".
func DisplayDate(d core.Date) string {
	return d.Format("Jan 2")
}

// DayOfWeekName returns the full English weekday name of d.
func DayOfWeekName(d core.Date) string {
	return d.Weekday().String()
}

// ShortDayName returns the abbreviated name for the i-th day of a
// Monday-based week, or "" when i is out of range.
func ShortDayName(i int) string {
	if i < 0 || i >= Length {
		return ""
	}
	return shortDays[i]
}
