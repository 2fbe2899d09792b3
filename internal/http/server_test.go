package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"weekspend/internal/cache"
	"weekspend/internal/categories"
	"weekspend/internal/core"
	"weekspend/internal/insights"
	"weekspend/internal/log"
	"weekspend/internal/middleware/trace"
	"weekspend/internal/services"
	"weekspend/internal/storage/memory"
	"weekspend/internal/week"
)

// Wednesday; the current week starts 2025-01-06.
var testNow = time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	store := memory.New()
	cal := week.NewCalendar(func() time.Time { return testNow }, time.UTC)
	logger := log.Discard()

	profiles := services.NewProfileService(store, logger)
	weeks := services.NewWeekService(store, profiles, insights.NewEngine(insights.DefaultThresholds()), cal,
		cache.NewLRUCache[*services.WeekReport](32, time.Hour), logger)
	profiles.SetInvalidator(weeks)

	svc := Services{
		Expenses:   services.NewExpenseService(store, cal, logger, services.WithInvalidator(weeks)),
		Weeks:      weeks,
		Categories: services.NewCategoryService(store, categories.NewClassifier(categories.DefaultRules()), logger),
		Profiles:   profiles,
		Auth: services.NewAuthService(store, store, time.Hour, logger,
			services.WithBcryptCost(bcrypt.MinCost),
			services.WithClock(func() time.Time { return testNow })),
		Digests: services.NewDigestService(store, store, weeks, logger),
	}
	if opts.Pinger == nil {
		opts.Pinger = store
	}
	srv := NewServer(":0", svc, opts, logger)
	t.Cleanup(func() { srv.rateLimiter.Stop() })
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, target, body, token string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

var deleteLink = regexp.MustCompile(`hx-delete="/expenses/(\d+)\?start=2025-01-06"`)

// signupCookie registers a browser user and returns its session cookie.
func signupCookie(t *testing.T, srv *Server, email string) *http.Cookie {
	t.Helper()
	rr := serve(srv, formRequest(http.MethodPost, "/signup", url.Values{"email": {email}, "password": {"correct horse"}}))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("signup status=%d body=%s", rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("signup did not set a session cookie")
	return nil
}

// signupToken registers an API user and returns its bearer token.
func signupToken(t *testing.T, srv *Server, email string) string {
	t.Helper()
	rr := serve(srv, jsonRequest(http.MethodPost, "/api/auth/signup", `{"email":"`+email+`","password":"correct horse"}`, ""))
	if rr.Code != http.StatusCreated {
		t.Fatalf("api signup status=%d body=%s", rr.Code, rr.Body.String())
	}
	var sess sessionJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &sess); err != nil || sess.Token == "" {
		t.Fatalf("decode session: %v %s", err, rr.Body.String())
	}
	return sess.Token
}

func TestHealthReadyAndMetrics(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		if rr.Header().Get(trace.HeaderRequestID) == "" {
			t.Fatalf("%s missing request id", path)
		}
	}

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{"http_requests_total", "report_cache_hits_total", "rate_limit_hits_total", "suspicious_requests_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestPagesRequireSession(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/ui/week", nil)
	req.Header.Set("HX-Request", "true")
	rr = serve(srv, req)
	if rr.Code != http.StatusUnauthorized || rr.Header().Get("HX-Redirect") != "/login" {
		t.Fatalf("expected HX-Redirect, got %d %q", rr.Code, rr.Header().Get("HX-Redirect"))
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Sign in") {
		t.Fatalf("login page status=%d", rr.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	srv := newTestServer(t, Options{})
	cookie := signupCookie(t, srv, "asha@example.com")

	rr := serve(srv, formRequest(http.MethodPost, "/login", url.Values{"email": {"asha@example.com"}, "password": {"wrong password"}}))
	if rr.Code != http.StatusUnauthorized || !strings.Contains(rr.Body.String(), "Invalid email or password") {
		t.Fatalf("bad login status=%d", rr.Code)
	}

	rr = serve(srv, formRequest(http.MethodPost, "/signup", url.Values{"email": {"asha@example.com"}, "password": {"correct horse"}}))
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status=%d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rr = serve(srv, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Add expense", "Jan 6", "Jan 12", "Eating Out", "Movie 250", "Sign out"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}

	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rr = serve(srv, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("logout status=%d", rr.Code)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if rr = serve(srv, req); rr.Code != http.StatusSeeOther {
		t.Fatalf("session survived logout: %d", rr.Code)
	}
}

func TestCreateAndDeleteExpense(t *testing.T) {
	srv := newTestServer(t, Options{})
	cookie := signupCookie(t, srv, "ravi@example.com")

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := formRequest(http.MethodPost, "/expenses", form)
		req.AddCookie(cookie)
		return serve(srv, req)
	}

	if rr := post(url.Values{"description": {"x"}, "amount": {"abc"}}); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid amount status=%d", rr.Code)
	}
	if rr := post(url.Values{"description": {" "}, "amount": {"10"}}); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty description status=%d", rr.Code)
	}

	rr := post(url.Values{"description": {"Pizza <b>night</b>"}, "amount": {"1200"}, "category": {"Eating Out"}, "date": {"2025-01-07"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"expense:created":{"start":"2025-01-06"}`) || !strings.Contains(trigger, `"form:reset"`) {
		t.Fatalf("unexpected HX-Trigger: %s", trigger)
	}
	if strings.Contains(rr.Body.String(), "<b>") {
		t.Fatalf("description not escaped: %s", rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/ui/week?start=2025-01-08", nil)
	req.AddCookie(cookie)
	rr = serve(srv, req)
	body := rr.Body.String()
	for _, want := range []string{"₹1,200", "Eating Out", "Apply suggestion?"} {
		if !strings.Contains(body, want) {
			t.Errorf("week partial missing %q", want)
		}
	}
	m := deleteLink.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("week partial has no delete button:\n%s", body)
	}
	path := "/expenses/" + m[1]

	other := signupCookie(t, srv, "mira@example.com")
	req = httptest.NewRequest(http.MethodDelete, path, nil)
	req.AddCookie(other)
	if rr = serve(srv, req); rr.Code != http.StatusNotFound {
		t.Fatalf("foreign delete status=%d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/expenses/abc", nil)
	req.AddCookie(cookie)
	if rr = serve(srv, req); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, path+"?start=2025-01-06", nil)
	req.AddCookie(cookie)
	rr = serve(srv, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("HX-Trigger"), "expense:deleted") {
		t.Fatalf("delete status=%d trigger=%s", rr.Code, rr.Header().Get("HX-Trigger"))
	}
}

func TestSuggestCategoryPartial(t *testing.T) {
	srv := newTestServer(t, Options{})
	cookie := signupCookie(t, srv, "dev@example.com")

	req := httptest.NewRequest(http.MethodGet, "/ui/suggest-category?description=Uber+to+office", nil)
	req.AddCookie(cookie)
	rr := serve(srv, req)
	if !strings.Contains(rr.Body.String(), `data-apply-category="Transport"`) {
		t.Fatalf("unexpected suggestion: %s", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/ui/suggest-category?description=zzz", nil)
	req.AddCookie(cookie)
	rr = serve(srv, req)
	if strings.TrimSpace(rr.Body.String()) != "" {
		t.Fatalf("expected empty suggestion, got %q", rr.Body.String())
	}
}

func TestAPIWeekAndInsights(t *testing.T) {
	srv := newTestServer(t, Options{})

	if rr := serve(srv, jsonRequest(http.MethodGet, "/api/week", "", "")); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous api status=%d", rr.Code)
	}
	if rr := serve(srv, jsonRequest(http.MethodGet, "/api/week", "", "not-a-token")); rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status=%d", rr.Code)
	}

	token := signupToken(t, srv, "api@example.com")

	for _, body := range []string{
		`{"description":"Shell petrol","amount":"2100","category":"Petrol","date":"2025-01-06"}`,
		`{"description":"Dinner","amount":"999.99","category":"Eating Out","date":"2025-01-08","is_saving":true,"saving_amount":"100"}`,
		`{"description":"Last week","amount":"50","date":"2024-12-31"}`,
	} {
		rr := serve(srv, jsonRequest(http.MethodPost, "/api/expenses", body, token))
		if rr.Code != http.StatusCreated {
			t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := serve(srv, jsonRequest(http.MethodGet, "/api/week", "", token))
	if rr.Code != http.StatusOK {
		t.Fatalf("week status=%d", rr.Code)
	}
	var wk weekJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &wk); err != nil {
		t.Fatalf("decode week: %v", err)
	}
	if wk.Start != "2025-01-06" || wk.End != "2025-01-12" || !wk.IsCurrent {
		t.Fatalf("unexpected window: %+v", wk)
	}
	if wk.Summary.Spent != "3099.99" || wk.Summary.Saved != "100.00" {
		t.Fatalf("unexpected summary: %+v", wk.Summary)
	}
	if wk.Summary.HighestDay == nil || wk.Summary.HighestDay.Date != "2025-01-06" {
		t.Fatalf("unexpected highest day: %+v", wk.Summary.HighestDay)
	}
	if len(wk.Expenses) != 2 || len(wk.Bars) != week.Length {
		t.Fatalf("expenses=%d bars=%d", len(wk.Expenses), len(wk.Bars))
	}
	// Eating Out stays below 1000, so only optimization and pattern fire.
	if len(wk.Insights) != 2 || wk.Insights[0].Kind != insights.KindOptimization || wk.Insights[1].Kind != insights.KindPattern {
		t.Fatalf("unexpected insights: %+v", wk.Insights)
	}

	rr = serve(srv, jsonRequest(http.MethodGet, "/api/insights?week=last", "", token))
	var last struct {
		WeekStart string             `json:"week_start"`
		Insights  []insights.Insight `json:"insights"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &last); err != nil {
		t.Fatalf("decode insights: %v", err)
	}
	if last.WeekStart != "2024-12-30" || len(last.Insights) != 0 {
		t.Fatalf("unexpected last week insights: %+v", last)
	}
}

func TestAPICategoriesSuggestAndPresets(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := signupToken(t, srv, "cats@example.com")

	rr := serve(srv, jsonRequest(http.MethodGet, "/api/categories", "", token))
	var cats []categoryJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	if len(cats) != len(categories.Defaults()) || cats[0].Name != "Eating Out" || !cats[0].IsDefault {
		t.Fatalf("unexpected categories: %+v", cats)
	}

	rr = serve(srv, jsonRequest(http.MethodGet, "/api/categories/suggest?q=PVR+tickets", "", token))
	if !strings.Contains(rr.Body.String(), `"category":"Movie"`) {
		t.Fatalf("unexpected suggestion: %s", rr.Body.String())
	}
	rr = serve(srv, jsonRequest(http.MethodGet, "/api/categories/suggest?q=", "", token))
	if !strings.Contains(rr.Body.String(), `"category":null`) {
		t.Fatalf("expected null suggestion: %s", rr.Body.String())
	}

	rr = serve(srv, jsonRequest(http.MethodGet, "/api/presets", "", token))
	var presets []categories.Preset
	if err := json.Unmarshal(rr.Body.Bytes(), &presets); err != nil || len(presets) != 3 {
		t.Fatalf("presets: %v %s", err, rr.Body.String())
	}
}

func TestAPIProfileAndDelete(t *testing.T) {
	srv := newTestServer(t, Options{})
	token := signupToken(t, srv, "profile@example.com")

	rr := serve(srv, jsonRequest(http.MethodGet, "/api/profile", "", token))
	if !strings.Contains(rr.Body.String(), `"currency":"₹"`) || !strings.Contains(rr.Body.String(), `"week_start_day":"monday"`) {
		t.Fatalf("unexpected profile: %s", rr.Body.String())
	}

	rr = serve(srv, jsonRequest(http.MethodPut, "/api/profile", `{"currency":"$","monthly_savings_goal":"5000"}`, token))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"monthly_savings_goal":"5000.00"`) {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = serve(srv, jsonRequest(http.MethodPut, "/api/profile", `{"currency":"way too long symbol"}`, token))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid currency status=%d", rr.Code)
	}

	rr = serve(srv, jsonRequest(http.MethodPost, "/api/expenses", `{"description":"Bus","amount":"40"}`, token))
	var e expenseJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode expense: %v", err)
	}
	if e.Date != "2025-01-08" || e.DayOfWeek != "Wednesday" || e.Category != "Misc" {
		t.Fatalf("unexpected defaults: %+v", e)
	}

	rr = serve(srv, jsonRequest(http.MethodGet, "/api/week", "", token))
	if !strings.Contains(rr.Body.String(), `"currency":"$"`) {
		t.Fatalf("profile currency not applied: %s", rr.Body.String())
	}

	target := "/api/expenses/" + strconv.FormatInt(e.ID, 10)
	rr = serve(srv, jsonRequest(http.MethodDelete, target, "", token))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = serve(srv, jsonRequest(http.MethodDelete, target, "", token))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}

	rr = serve(srv, jsonRequest(http.MethodGet, "/api/digests", "", token))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("digests status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = serve(srv, jsonRequest(http.MethodPost, "/api/auth/logout", "", token))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout status=%d", rr.Code)
	}
	if rr = serve(srv, jsonRequest(http.MethodGet, "/api/profile", "", token)); rr.Code != http.StatusUnauthorized {
		t.Fatalf("token survived logout: %d", rr.Code)
	}
}

func TestAPIAuthErrors(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		body string
		want int
	}{
		{`{"email":"not-an-email","password":"correct horse"}`, http.StatusUnprocessableEntity},
		{`{"email":"short@example.com","password":"short"}`, http.StatusUnprocessableEntity},
		{`{"email":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := serve(srv, jsonRequest(http.MethodPost, "/api/auth/signup", tt.body, ""))
		if rr.Code != tt.want {
			t.Errorf("signup %s: status=%d want %d", tt.body, rr.Code, tt.want)
		}
	}

	rr := serve(srv, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"nobody@example.com","password":"whatever123"}`, ""))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("login status=%d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Options{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/week", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := serve(srv, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("credentials not allowed for explicit origin")
	}
}

func TestRateLimitAndBlockedMethods(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 1})

	first := serve(srv, formRequest(http.MethodPost, "/login", url.Values{"email": {"a@example.com"}, "password": {"whatever123"}}))
	if first.Code == http.StatusTooManyRequests {
		t.Fatalf("first request limited")
	}
	rr := serve(srv, formRequest(http.MethodPost, "/login", url.Values{"email": {"a@example.com"}, "password": {"whatever123"}}))
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("second request status=%d", rr.Code)
	}
	rr = serve(srv, jsonRequest(http.MethodPost, "/api/auth/login", `{}`, ""))
	if rr.Code != http.StatusTooManyRequests || !strings.Contains(rr.Body.String(), `"error"`) {
		t.Fatalf("api limit status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr = serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rr.Code != http.StatusOK {
		t.Fatalf("GET limited: %d", rr.Code)
	}

	if rr = serve(srv, httptest.NewRequest("TRACE", "/", nil)); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("TRACE status=%d", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rr.Header().Get("X-Frame-Options") != "DENY" || rr.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("missing security headers: %v", rr.Header())
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents int64
		exact string
		round string
	}{
		{0, "₹0.00", "₹0"},
		{123450, "₹1,234.50", "₹1,235"},
		{123449, "₹1,234.49", "₹1,234"},
		{1234567800, "₹12,345,678.00", "₹12,345,678"},
	}
	for _, tt := range tests {
		m := core.Money{Cents: tt.cents}
		if got := formatAmountExact("₹", m); got != tt.exact {
			t.Errorf("formatAmountExact(%d) = %q, want %q", tt.cents, got, tt.exact)
		}
		if got := formatAmount("₹", m); got != tt.round {
			t.Errorf("formatAmount(%d) = %q, want %q", tt.cents, got, tt.round)
		}
	}
}
