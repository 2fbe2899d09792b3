package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"weekspend/internal/core"
	"weekspend/internal/insights"
	"weekspend/internal/services"
	"weekspend/internal/week"
)

var (
	errUnauthenticated = errors.New("authentication required")
	errBadBody         = errors.New("malformed request body")
)

var amountPrinter = message.NewPrinter(language.English)

// formatAmount renders m rounded half-up to whole units with digit
// grouping, e.g. "₹12,346".
func formatAmount(currency string, m core.Money) string {
	return currency + amountPrinter.Sprintf("%d", m.RoundUnits())
}

// formatAmountExact renders m with its cents, e.g. "₹1,234.50".
func formatAmountExact(currency string, m core.Money) string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + currency + amountPrinter.Sprintf("%d", cents/100) + fmt.Sprintf(".%02d", cents%100)
}

// barHeight scales v against max into a visible percentage.
func barHeight(v, max core.Money) int {
	if max.Cents <= 0 || v.Cents <= 0 {
		return 0
	}
	pct := int((v.Cents*100 + max.Cents/2) / max.Cents)
	if pct < 2 {
		pct = 2
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":      formatAmount,
		"moneyExact": formatAmountExact,
		"iso":        week.ISODate,
		"display":    week.DisplayDate,
		"dayName":    week.DayOfWeekName,
		"shortDay":   week.ShortDayName,
		"barHeight":  barHeight,
		"kindColor":  func(k insights.Kind) string { return k.Color() },
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadBody), errors.Is(err, errInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthenticated),
		errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidTime),
		errors.Is(err, services.ErrInvalidCurrency),
		errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrInvalidEmail):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// userMessage hides internal failures from clients.
func userMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "Something went wrong, please try again"
	}
	switch {
	case errors.Is(err, errInvalidID):
		return "Invalid expense id"
	case errors.Is(err, core.ErrNotFound):
		return "Expense not found"
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": userMessage(err)})
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
