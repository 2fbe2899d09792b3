package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"weekspend/internal/core"
	"weekspend/internal/log"
	"weekspend/internal/ports"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionExpired     = errors.New("session expired")
	ErrWeakPassword       = errors.New("password must be between 8 and 72 characters")
	ErrInvalidEmail       = errors.New("invalid email address")
)

const (
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
)

type AuthService struct {
	users    ports.UserStore
	sessions ports.SessionStore
	ttl      time.Duration
	cost     int
	now      func() time.Time
	logger   *log.Logger
}

type AuthOption func(*AuthService)

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.cost = cost }
}

// WithClock overrides the clock used for session expiry.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(users ports.UserStore, sessions ports.SessionStore, ttl time.Duration, logger *log.Logger, opts ...AuthOption) *AuthService {
	if logger == nil {
		logger = log.Discard()
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	s := &AuthService{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentAuth),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// SignUp registers a user and opens a session for them.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (core.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return core.Session{}, err
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return core.Session{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return core.Session{}, fmt.Errorf("hash password: %w", err)
	}

	u := core.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.Session{}, ErrEmailTaken
		}
		return core.Session{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Fields(ctx, slog.LevelInfo, "User signed up", log.NewFields().WithUser(u.ID).WithOperation(log.OpSignUp))
	return s.openSession(ctx, u.ID)
}

// SignIn checks the credentials and opens a new session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (core.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return core.Session{}, ErrInvalidCredentials
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Session{}, ErrInvalidCredentials
		}
		return core.Session{}, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Fields(ctx, slog.LevelWarn, "Sign-in rejected", log.NewFields().
			WithUser(u.ID).
			WithOperation(log.OpSignIn).
			WithErrorType(log.ErrorTypeAuth))
		return core.Session{}, ErrInvalidCredentials
	}

	return s.openSession(ctx, u.ID)
}

func (s *AuthService) openSession(ctx context.Context, userID string) (core.Session, error) {
	now := s.now().UTC()
	sess := core.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return core.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// SignOut ends the session. Unknown tokens are ignored.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Authenticate resolves a session token to its user ID.
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionExpired
	}
	sess, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", ErrSessionExpired
		}
		return "", fmt.Errorf("get session: %w", err)
	}
	if sess.Expired(s.now()) {
		_ = s.sessions.DeleteSession(ctx, token)
		return "", ErrSessionExpired
	}
	return sess.UserID, nil
}
