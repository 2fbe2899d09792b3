package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/cors"

	"weekspend/internal/log"
	"weekspend/internal/middleware/ratelimit"
	"weekspend/internal/middleware/security"
	"weekspend/internal/middleware/trace"
	"weekspend/internal/services"
	appweb "weekspend/web"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the application layer the handlers call into.
type Services struct {
	Expenses   *services.ExpenseService
	Weeks      *services.WeekService
	Categories *services.CategoryService
	Profiles   *services.ProfileService
	Auth       *services.AuthService
	Digests    *services.DigestService
}

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
	SessionTTL         time.Duration
	SecureCookies      bool
	TrustedProxies     []string
	Pinger             Pinger
}

type Server struct {
	http.Server

	templates *template.Template
	logger    *log.Logger
	events    *log.StructuredLogger

	expenses   *services.ExpenseService
	weeks      *services.WeekService
	categories *services.CategoryService
	profiles   *services.ProfileService
	auth       *services.AuthService
	digests    *services.DigestService
	pinger     Pinger

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware

	sessionTTL    time.Duration
	secureCookies bool

	started         time.Time
	expensesCreated atomic.Int64
	expensesDeleted atomic.Int64
	shutdownOnce    sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, svc Services, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * 24 * time.Hour
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger:        httpLogger,
		events:        log.NewStructuredLogger(httpLogger),
		expenses:      svc.Expenses,
		weeks:         svc.Weeks,
		categories:    svc.Categories,
		profiles:      svc.Profiles,
		auth:          svc.Auth,
		digests:       svc.Digests,
		pinger:        opts.Pinger,
		sessionTTL:    opts.SessionTTL,
		secureCookies: opts.SecureCookies,
		started:       time.Now(),
	}

	s.securityDetector = security.NewDetector(logger)
	for _, cidr := range opts.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			httpLogger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		httpLogger.Error("Failed parsing templates", log.FieldError, err, log.FieldComponent, log.ComponentTemplate)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		httpLogger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /signup", s.handleSignup)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /{$}", s.requirePageUser(s.handleIndex))
	mux.Handle("POST /expenses", s.requirePageUser(s.handleCreateExpense))
	mux.Handle("DELETE /expenses/{id}", s.requirePageUser(s.handleDeleteExpense))
	mux.Handle("GET /ui/week", s.requirePageUser(s.handleWeekPartial))
	mux.Handle("GET /ui/suggest-category", s.requirePageUser(s.handleSuggestCategory))

	mux.Handle("/api/", s.apiHandler(opts.AllowedOrigins))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)

	var handler http.Handler = mux
	handler = headers.Middleware(handler)
	handler = limited(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s
}

// apiHandler mounts the JSON API behind CORS.
func (s *Server) apiHandler(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	api := http.NewServeMux()

	api.HandleFunc("POST /api/auth/signup", s.handleAPISignup)
	api.HandleFunc("POST /api/auth/login", s.handleAPILogin)
	api.HandleFunc("POST /api/auth/logout", s.handleAPILogout)

	api.Handle("GET /api/week", s.requireAPIUser(s.handleAPIWeek))
	api.Handle("GET /api/insights", s.requireAPIUser(s.handleAPIInsights))
	api.Handle("GET /api/categories", s.requireAPIUser(s.handleAPICategories))
	api.Handle("GET /api/categories/suggest", s.requireAPIUser(s.handleAPISuggest))
	api.Handle("GET /api/presets", s.requireAPIUser(s.handleAPIPresets))
	api.Handle("POST /api/expenses", s.requireAPIUser(s.handleAPICreateExpense))
	api.Handle("DELETE /api/expenses/{id}", s.requireAPIUser(s.handleAPIDeleteExpense))
	api.Handle("GET /api/profile", s.requireAPIUser(s.handleAPIGetProfile))
	api.Handle("PUT /api/profile", s.requireAPIUser(s.handleAPIUpdateProfile))
	api.Handle("GET /api/digests", s.requireAPIUser(s.handleAPIDigests))

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           600,
	})
	return c.Handler(log.ComponentMiddleware(log.ComponentAPI)(api))
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	if isAPIRequest(r) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded, please try again later"})
		return
	}
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, please slow down").Write(w)
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", "addr", s.Addr)
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
