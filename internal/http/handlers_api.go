package http

import (
	"net/http"
	"strconv"
	"time"

	"weekspend/internal/core"
	"weekspend/internal/insights"
	"weekspend/internal/log"
	"weekspend/internal/services"
	"weekspend/internal/week"
)

type (
	expenseJSON struct {
		ID           int64     `json:"id"`
		Amount       string    `json:"amount"`
		Description  string    `json:"description"`
		Category     string    `json:"category"`
		Tag          string    `json:"tag,omitempty"`
		Date         string    `json:"date"`
		Time         string    `json:"time,omitempty"`
		DayOfWeek    string    `json:"day_of_week"`
		IsSaving     bool      `json:"is_saving"`
		SavingAmount string    `json:"saving_amount"`
		CreatedAt    time.Time `json:"created_at"`
	}

	dayAmountJSON struct {
		Day    string `json:"day"`
		Date   string `json:"date"`
		Amount string `json:"amount"`
	}

	summaryJSON struct {
		Spent      string         `json:"spent"`
		Saved      string         `json:"saved"`
		AvgPerDay  string         `json:"avg_per_day"`
		HighestDay *dayAmountJSON `json:"highest_day"`
	}

	weekJSON struct {
		Start     string             `json:"start"`
		End       string             `json:"end"`
		Prev      string             `json:"prev"`
		Next      string             `json:"next"`
		IsCurrent bool               `json:"is_current"`
		Currency  string             `json:"currency"`
		Summary   summaryJSON        `json:"summary"`
		Bars      []dayAmountJSON    `json:"bars"`
		Savings   []dayAmountJSON    `json:"savings"`
		Breakdown []insights.Slice   `json:"breakdown"`
		Insights  []insights.Insight `json:"insights"`
		Expenses  []expenseJSON      `json:"expenses"`
	}

	categoryJSON struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		Icon      string `json:"icon"`
		Color     string `json:"color"`
		IsDefault bool   `json:"is_default"`
	}

	profileJSON struct {
		Currency           string `json:"currency"`
		WeekStartDay       string `json:"week_start_day"`
		MonthlySavingsGoal string `json:"monthly_savings_goal"`
	}

	digestJSON struct {
		WeekStart string               `json:"week_start"`
		Spent     string               `json:"spent"`
		Saved     string               `json:"saved"`
		Insights  []core.InsightRecord `json:"insights"`
		CreatedAt time.Time            `json:"created_at"`
	}

	sessionJSON struct {
		Token     string    `json:"token"`
		UserID    string    `json:"user_id"`
		ExpiresAt time.Time `json:"expires_at"`
	}
)

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:           e.ID,
		Amount:       e.Amount.String(),
		Description:  e.Description,
		Category:     e.Category(),
		Tag:          e.Tag,
		Date:         week.ISODate(e.Date),
		Time:         e.Time,
		DayOfWeek:    e.DayOfWeek,
		IsSaving:     e.IsSaving,
		SavingAmount: e.Saving().String(),
		CreatedAt:    e.CreatedAt,
	}
}

func toDayAmounts(days []insights.DayTotal) []dayAmountJSON {
	out := make([]dayAmountJSON, len(days))
	for i, d := range days {
		out[i] = dayAmountJSON{Day: d.Label, Date: week.ISODate(d.Date), Amount: d.Amount.String()}
	}
	return out
}

func toWeekJSON(r *services.WeekReport) weekJSON {
	out := weekJSON{
		Start:     week.ISODate(r.Window.Start),
		End:       week.ISODate(r.Window.End),
		Prev:      week.ISODate(r.Prev),
		Next:      week.ISODate(r.Next),
		IsCurrent: r.IsCurrent,
		Currency:  r.Currency,
		Summary: summaryJSON{
			Spent:     r.Summary.Spent.String(),
			Saved:     r.Summary.Saved.String(),
			AvgPerDay: r.Summary.AvgPerDay.String(),
		},
		Bars:      toDayAmounts(r.Bars),
		Savings:   toDayAmounts(r.Savings),
		Breakdown: r.Breakdown,
		Insights:  r.Insights,
		Expenses:  make([]expenseJSON, 0, len(r.Expenses)),
	}
	if h := r.Summary.HighestDay; h != nil {
		out.Summary.HighestDay = &dayAmountJSON{
			Day:    week.DayOfWeekName(h.Date),
			Date:   week.ISODate(h.Date),
			Amount: h.Amount.String(),
		}
	}
	if out.Breakdown == nil {
		out.Breakdown = []insights.Slice{}
	}
	if out.Insights == nil {
		out.Insights = []insights.Insight{}
	}
	for _, e := range r.Expenses {
		out.Expenses = append(out.Expenses, toExpenseJSON(e))
	}
	return out
}

func toProfileJSON(p core.Profile) profileJSON {
	return profileJSON{
		Currency:           p.Currency,
		WeekStartDay:       p.WeekStartDay,
		MonthlySavingsGoal: p.MonthlySavingsGoal.String(),
	}
}

func (s *Server) weekReport(r *http.Request) (*services.WeekReport, error) {
	start := ParseWeekStart(r.URL.Query(), s.weeks.Calendar())
	return s.weeks.Report(r.Context(), UserIDFromContext(r.Context()), start)
}

// apiFail logs unexpected failures and writes the JSON error body.
func (s *Server) apiFail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), msg, log.FieldError, err, log.FieldPath, r.URL.Path)
	}
	writeJSONError(w, err)
}

func (s *Server) handleAPIWeek(w http.ResponseWriter, r *http.Request) {
	report, err := s.weekReport(r)
	if err != nil {
		s.apiFail(w, r, "Week report failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekJSON(report))
}

func (s *Server) handleAPIInsights(w http.ResponseWriter, r *http.Request) {
	report, err := s.weekReport(r)
	if err != nil {
		s.apiFail(w, r, "Insights failed", err)
		return
	}
	list := report.Insights
	if list == nil {
		list = []insights.Insight{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"week_start": week.ISODate(report.Window.Start),
		"insights":   list,
	})
}

func (s *Server) handleAPICategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.apiFail(w, r, "Category list failed", err)
		return
	}
	out := make([]categoryJSON, len(cats))
	for i, c := range cats {
		out[i] = categoryJSON{ID: c.ID, Name: c.Name, Icon: c.Icon, Color: c.Color, IsDefault: c.IsDefault}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPISuggest(w http.ResponseWriter, r *http.Request) {
	name, ok := s.categories.Suggest(r.URL.Query().Get("q"))
	var category *string
	if ok {
		category = &name
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": category, "found": ok})
}

func (s *Server) handleAPIPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.categories.Presets())
}

func (s *Server) handleAPICreateExpense(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		writeJSONError(w, errBadBody)
		return
	}
	e, err := s.expenses.Create(r.Context(), UserIDFromContext(r.Context()), parser.ExpenseInput())
	if err != nil {
		s.apiFail(w, r, "Failed to save expense", err)
		return
	}
	s.expensesCreated.Add(1)
	w.Header().Set("Location", "/api/expenses/"+strconv.FormatInt(e.ID, 10))
	writeJSON(w, http.StatusCreated, toExpenseJSON(e))
}

func (s *Server) handleAPIDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, err)
		return
	}
	if err := s.expenses.Delete(r.Context(), UserIDFromContext(r.Context()), id); err != nil {
		s.apiFail(w, r, "Failed to delete expense", err)
		return
	}
	s.expensesDeleted.Add(1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.apiFail(w, r, "Profile lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileJSON(p))
}

func (s *Server) handleAPIUpdateProfile(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		writeJSONError(w, errBadBody)
		return
	}
	p, err := s.profiles.Update(r.Context(), UserIDFromContext(r.Context()), services.ProfileUpdate{
		Currency:           parser.Get("currency"),
		MonthlySavingsGoal: parser.Get("monthly_savings_goal"),
	})
	if err != nil {
		s.apiFail(w, r, "Profile update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileJSON(p))
}

func (s *Server) handleAPIDigests(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.digests.List(r.Context(), UserIDFromContext(r.Context()), limit)
	if err != nil {
		s.apiFail(w, r, "Digest list failed", err)
		return
	}
	out := make([]digestJSON, len(list))
	for i, d := range list {
		out[i] = digestJSON{
			WeekStart: week.ISODate(d.WeekStart),
			Spent:     d.Spent.String(),
			Saved:     d.Saved.String(),
			Insights:  d.Insights,
			CreatedAt: d.CreatedAt,
		}
		if out[i].Insights == nil {
			out[i].Insights = []core.InsightRecord{}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) apiCredentials(w http.ResponseWriter, r *http.Request, signup bool) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		writeJSONError(w, errBadBody)
		return
	}
	var (
		sess core.Session
		err  error
	)
	status := http.StatusOK
	if signup {
		sess, err = s.auth.SignUp(r.Context(), parser.Get("email"), parser.GetRaw("password"))
		status = http.StatusCreated
	} else {
		sess, err = s.auth.SignIn(r.Context(), parser.Get("email"), parser.GetRaw("password"))
	}
	if err != nil {
		s.apiFail(w, r, "Authentication failed", err)
		return
	}
	s.setSessionCookie(w, sess)
	writeJSON(w, status, sessionJSON{Token: sess.Token, UserID: sess.UserID, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) handleAPISignup(w http.ResponseWriter, r *http.Request) {
	s.apiCredentials(w, r, true)
}

func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	s.apiCredentials(w, r, false)
}

func (s *Server) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.auth.SignOut(r.Context(), token); err != nil {
			s.apiFail(w, r, "Sign out failed", err)
			return
		}
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
