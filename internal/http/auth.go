package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"weekspend/internal/core"
	"weekspend/internal/log"
	"weekspend/internal/services"
)

// SessionCookieName holds the session token for browser clients.
const SessionCookieName = "weekspend_session"

type userKey struct{}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserIDFromContext returns the authenticated user of the request.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// sessionToken reads a bearer token first, then the session cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) authenticate(r *http.Request) (string, error) {
	token := sessionToken(r)
	if token == "" {
		return "", errUnauthenticated
	}
	userID, err := s.auth.Authenticate(r.Context(), token)
	if err != nil {
		return "", err
	}
	return userID, nil
}

// requirePageUser redirects anonymous browsers to the login page. HTMX
// requests get an HX-Redirect instead of a 303.
func (s *Server) requirePageUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.authenticate(r)
		if err != nil {
			if statusFor(err) == http.StatusInternalServerError {
				log.FromContext(r.Context()).ErrorContext(r.Context(), "Session lookup failed", log.FieldError, err)
				InternalServerError("Something went wrong, please try again").Write(w)
				return
			}
			s.clearSessionCookie(w)
			if r.Header.Get("HX-Request") == "true" {
				NewHTMXResponse().Redirect("/login").Status(http.StatusUnauthorized).Write(w)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := withUserID(r.Context(), userID)
		ctx = log.WithContext(ctx, log.FromContext(ctx).With(log.FieldUserID, userID))
		next(w, r.WithContext(ctx))
	})
}

// requireAPIUser rejects anonymous API calls with 401.
func (s *Server) requireAPIUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.authenticate(r)
		if err != nil {
			if statusFor(err) == http.StatusInternalServerError {
				log.FromContext(r.Context()).ErrorContext(r.Context(), "Session lookup failed", log.FieldError, err)
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="weekspend"`)
			writeJSONError(w, err)
			return
		}
		ctx := withUserID(r.Context(), userID)
		ctx = log.WithContext(ctx, log.FromContext(ctx).With(log.FieldUserID, userID))
		next(w, r.WithContext(ctx))
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess core.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// authFailure is the message shown for sign-in and sign-up errors.
func authFailure(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, services.ErrEmailTaken):
		return "That email is already registered"
	default:
		return userMessage(err)
	}
}
