package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"weekspend/internal/core"
	"weekspend/internal/log"
	"weekspend/internal/ports"
)

// ErrInvalidCurrency is returned for an empty or overlong currency symbol.
var ErrInvalidCurrency = errors.New("invalid currency symbol")

const maxCurrencyLen = 8

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Currency           string `json:"currency"`
	MonthlySavingsGoal string `json:"monthly_savings_goal"`
}

type ProfileService struct {
	store   ports.ProfileStore
	reports ReportInvalidator
	logger  *log.Logger
}

func NewProfileService(store ports.ProfileStore, logger *log.Logger) *ProfileService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ProfileService{store: store, logger: logger.WithComponent(log.ComponentApp)}
}

// SetInvalidator wires the report cache after construction, since the week
// service itself depends on profiles.
func (s *ProfileService) SetInvalidator(r ReportInvalidator) {
	s.reports = r
}

// Get returns the user's profile, creating it with defaults on first use.
func (s *ProfileService) Get(ctx context.Context, userID string) (core.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	p = core.DefaultProfile(userID)
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return core.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

// Update changes the currency symbol and monthly savings goal. Empty fields
// are left unchanged.
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileUpdate) (core.Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return core.Profile{}, err
	}

	if c := strings.TrimSpace(in.Currency); c != "" {
		if utf8.RuneCountInString(c) > maxCurrencyLen {
			return core.Profile{}, ErrInvalidCurrency
		}
		p.Currency = c
	}
	if g := strings.TrimSpace(in.MonthlySavingsGoal); g != "" {
		goal, err := core.ParseMoney(g)
		if err != nil {
			return core.Profile{}, err
		}
		p.MonthlySavingsGoal = goal
	}

	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return core.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	if s.reports != nil {
		s.reports.InvalidateUser(userID)
	}
	s.logger.InfoContext(ctx, "Profile updated", log.FieldUserID, userID, "currency", p.Currency)
	return s.store.GetProfile(ctx, userID)
}
