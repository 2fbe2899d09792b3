package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"weekspend/internal/core"
	"weekspend/internal/log"
	"weekspend/internal/ports"
	"weekspend/internal/week"
)

// DigestRun counts the outcome of one digest pass.
type DigestRun struct {
	WeekStart core.Date
	Users     int
	Created   int
	Skipped   int
	Failed    int
}

// DigestService stores one summary per user for each completed week.
type DigestService struct {
	users       ports.UserStore
	digests     ports.DigestStore
	reports     *WeekService
	concurrency int
	logger      *log.Logger
}

func NewDigestService(users ports.UserStore, digests ports.DigestStore, reports *WeekService, logger *log.Logger) *DigestService {
	if logger == nil {
		logger = log.Discard()
	}
	return &DigestService{
		users:       users,
		digests:     digests,
		reports:     reports,
		concurrency: 4,
		logger:      logger.WithComponent(log.ComponentDigest),
	}
}

// Run digests the week before the one containing now for every user.
// Users already digested for that week are skipped. Per-user failures are
// counted and logged; the joined errors are returned after every user ran.
func (s *DigestService) Run(ctx context.Context, now time.Time) (DigestRun, error) {
	start := week.Shift(week.StartOf(s.reports.Calendar().DateOf(now)), -1)
	run := DigestRun{WeekStart: start}

	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return run, fmt.Errorf("list users: %w", err)
	}
	run.Users = len(ids)

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			created, err := s.digestUser(gctx, id, start)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				run.Failed++
				errs = append(errs, fmt.Errorf("user %s: %w", id, err))
				s.logger.ErrorContext(gctx, "Digest failed", log.FieldUserID, id, log.FieldError, err)
			case created:
				run.Created++
			default:
				run.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "Digest run finished",
		log.FieldWeekStart, week.ISODate(start),
		"users", run.Users,
		"created", run.Created,
		"skipped", run.Skipped,
		"failed", run.Failed)
	return run, errors.Join(errs...)
}

func (s *DigestService) digestUser(ctx context.Context, userID string, start core.Date) (bool, error) {
	latest, err := s.digests.ListDigests(ctx, userID, 1)
	if err != nil {
		return false, fmt.Errorf("list digests: %w", err)
	}
	if len(latest) > 0 && !latest[0].WeekStart.Before(start) {
		return false, nil
	}

	r, err := s.reports.Report(ctx, userID, start)
	if err != nil {
		return false, err
	}

	records := make([]core.InsightRecord, len(r.Insights))
	for i, in := range r.Insights {
		records[i] = core.InsightRecord{
			Kind:     string(in.Kind),
			Category: in.Category,
			Message:  in.Message,
			Action:   in.Action,
		}
	}
	d := core.Digest{
		UserID:    userID,
		WeekStart: start,
		Spent:     r.Summary.Spent,
		Saved:     r.Summary.Saved,
		Insights:  records,
	}
	if err := s.digests.SaveDigest(ctx, d); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("save digest: %w", err)
	}
	s.logger.InfoContext(ctx, "Stored weekly digest",
		log.FieldUserID, userID,
		log.FieldWeekStart, week.ISODate(start),
		log.FieldInsights, len(records))
	return true, nil
}

// List returns the user's most recent digests, newest first.
func (s *DigestService) List(ctx context.Context, userID string, limit int) ([]core.Digest, error) {
	if limit <= 0 || limit > 52 {
		limit = 12
	}
	return s.digests.ListDigests(ctx, userID, limit)
}
