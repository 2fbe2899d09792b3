package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"weekspend/internal/categories"
	"weekspend/internal/core"
	"weekspend/internal/log"
	"weekspend/internal/services"
	"weekspend/internal/week"
)

// weekView is the data of the week partial.
type weekView struct {
	*services.WeekReport
	MaxBar    core.Money
	MaxSaving core.Money
}

func newWeekView(r *services.WeekReport) weekView {
	v := weekView{WeekReport: r}
	for _, b := range r.Bars {
		if b.Amount.Cents > v.MaxBar.Cents {
			v.MaxBar = b.Amount
		}
	}
	for _, b := range r.Savings {
		if b.Amount.Cents > v.MaxSaving.Cents {
			v.MaxSaving = b.Amount
		}
	}
	return v
}

type indexPage struct {
	Week       weekView
	Categories []core.Category
	Presets    []categories.Preset
	Today      string
}

type loginPage struct {
	Email  string
	Error  string
	Signup bool
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks templates and the storage backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.pinger == nil {
		checks["storage"] = "not_configured"
	} else if err := s.pinger.Ping(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	if s.weeks != nil {
		stats := s.weeks.CacheStats()
		checks["report_cache"] = map[string]any{"entries": stats.Size, "status": "ok"}
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients(), "status": "ok"}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_server_errors_total", "Responses with a 5xx status", traceMetrics.ServerErrors)
	gauge("http_requests_in_flight", "Requests currently being served", traceMetrics.InFlight)
	gauge("http_response_time_avg_microseconds", "Average response time", traceMetrics.AverageResponseTime)
	counter("expenses_created_total", "Expenses created through the HTTP surface", s.expensesCreated.Load())
	counter("expenses_deleted_total", "Expenses deleted through the HTTP surface", s.expensesDeleted.Load())

	if s.weeks != nil {
		stats := s.weeks.CacheStats()
		counter("report_cache_hits_total", "Week report cache hits", int64(stats.Hits))
		counter("report_cache_misses_total", "Week report cache misses", int64(stats.Misses))
		gauge("report_cache_entries", "Cached week reports", int64(stats.Size))
	}

	counter("rate_limit_hits_total", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	counter("suspicious_requests_total", "Suspicious requests detected", securityMetrics.SuspiciousRequests)
	counter("blocked_requests_total", "Requests blocked by the security middleware", securityMetrics.BlockedRequests)
	gauge("uptime_seconds", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name,
			log.FieldOperation, log.OpRender)
	}
}

// handleIndex renders the week page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserIDFromContext(ctx)
	start := ParseWeekStart(r.URL.Query(), s.weeks.Calendar())

	report, err := s.weeks.Report(ctx, userID, start)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Week report failed", log.FieldError, err, log.FieldWeekStart, week.ISODate(start))
		http.Error(w, "could not load week", http.StatusInternalServerError)
		return
	}
	cats, err := s.categories.List(ctx, userID)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Category list failed", log.FieldError, err)
	}

	s.render(w, r, http.StatusOK, "index.html", indexPage{
		Week:       newWeekView(report),
		Categories: cats,
		Presets:    s.categories.Presets(),
		Today:      week.ISODate(s.weeks.Calendar().Today()),
	})
}

// handleWeekPartial re-renders the week section after HTMX events.
func (s *Server) handleWeekPartial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := ParseWeekStart(r.URL.Query(), s.weeks.Calendar())
	report, err := s.weeks.Report(ctx, UserIDFromContext(ctx), start)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Week partial failed", log.FieldError, err, log.FieldWeekStart, week.ISODate(start))
		NewHTMXResponse().BodyHTML(`<section id="week" class="week"><div class="placeholder">Error loading week</div></section>`).Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "week", newWeekView(report))
}

// handleSuggestCategory answers one keystroke of the description field.
func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request) {
	name, ok := s.categories.Suggest(r.URL.Query().Get("description"))
	s.render(w, r, http.StatusOK, "suggestion", struct {
		Name  string
		Found bool
	}{name, ok})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authenticate(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", loginPage{Signup: r.URL.Query().Get("mode") == "signup"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, false)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, true)
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request, signup bool) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	email := sanitizeInput(r.Form.Get("email"))
	password := r.Form.Get("password")

	var (
		sess core.Session
		err  error
	)
	if signup {
		sess, err = s.auth.SignUp(ctx, email, password)
	} else {
		sess, err = s.auth.SignIn(ctx, email, password)
	}
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.FromContext(ctx).ErrorContext(ctx, "Authentication failed", log.FieldError, err)
		}
		s.render(w, r, status, "login.html", loginPage{Email: email, Error: authFailure(err), Signup: signup})
		return
	}

	s.setSessionCookie(w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.auth.SignOut(r.Context(), token); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Sign out failed", log.FieldError, err)
		}
	}
	s.clearSessionCookie(w)
	if r.Header.Get("HX-Request") == "true" {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
