package http

import (
	"html/template"
	"net/http"

	"weekspend/internal/log"
	"weekspend/internal/week"
)

// handleCreateExpense stores an expense posted by the HTMX form (or as
// JSON) and tells the page to refresh the affected week.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		logger.WarnContext(ctx, "Parse body error", log.FieldError, err, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	e, err := s.expenses.Create(ctx, UserIDFromContext(ctx), parser.ExpenseInput())
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.events.LogError(ctx, "Failed to save expense", err, log.OpCreate,
				log.NewFields().WithUser(UserIDFromContext(ctx)).WithErrorType(log.ErrorTypeDatabase))
		}
		ErrorResponse(status, userMessage(err)).Write(w)
		return
	}
	s.expensesCreated.Add(1)

	start := week.ISODate(week.StartOf(e.Date))
	body := `<div class="success">Saved: ` + template.HTMLEscapeString(e.Description) +
		` (` + template.HTMLEscapeString(e.Category()) + `)</div>`
	NewHTMXResponse().
		TriggerExpenseCreated(start).
		TriggerFormReset().
		TriggerSuccessNotification("Expense saved").
		BodyHTML(body).
		Write(w)
}

// handleDeleteExpense removes one of the user's expenses.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		BadRequestError(userMessage(err)).Write(w)
		return
	}

	start := ParseWeekStart(r.URL.Query(), s.weeks.Calendar())
	if err := s.expenses.Delete(ctx, UserIDFromContext(ctx), id); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.events.LogError(ctx, "Failed to delete expense", err, log.OpDelete,
				log.NewFields().WithUser(UserIDFromContext(ctx)).WithErrorType(log.ErrorTypeDatabase))
		}
		ErrorResponse(status, userMessage(err)).Write(w)
		return
	}
	s.expensesDeleted.Add(1)

	NewHTMXResponse().
		TriggerExpenseDeleted(week.ISODate(start)).
		TriggerSuccessNotification("Expense deleted").
		Write(w)
}
