// Package memory is an in-process ports.Store for development and tests.
// Data is lost when the process exits.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"weekspend/internal/core"
)

type Store struct {
	mu         sync.Mutex
	now        func() time.Time
	nextID     int64
	expenses   map[int64]core.Expense
	syncState  map[int64]syncEntry
	categories map[string][]core.Category
	profiles   map[string]core.Profile
	users      map[string]core.User // by lower-cased email
	sessions   map[string]core.Session
	digests    map[string][]core.Digest
}

type syncEntry struct {
	status  core.SyncStatus
	version int64
}

func New() *Store {
	return &Store{
		now:        time.Now,
		expenses:   make(map[int64]core.Expense),
		syncState:  make(map[int64]syncEntry),
		categories: make(map[string][]core.Category),
		profiles:   make(map[string]core.Profile),
		users:      make(map[string]core.User),
		sessions:   make(map[string]core.Session),
		digests:    make(map[string][]core.Digest),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	s.expenses[e.ID] = e
	s.syncState[e.ID] = syncEntry{status: core.SyncPending, version: 1}
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.expenses, id)
	delete(s.syncState, id)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, userID string, from, to core.Date) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.UserID != userID || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b core.Expense) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories[userID]), nil
}

func (s *Store) CreateCategories(_ context.Context, userID string, cats []core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.categories[userID]
	for _, c := range cats {
		if slices.ContainsFunc(existing, func(x core.Category) bool { return x.Name == c.Name }) {
			continue
		}
		s.nextID++
		c.ID = s.nextID
		c.UserID = userID
		existing = append(existing, c)
	}
	s.categories[userID] = existing
	return nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return core.Profile{}, core.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpsertProfile(_ context.Context, p core.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = s.now().UTC()
	s.profiles[p.UserID] = p
	return nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := s.users[key]; ok {
		return core.ErrConflict
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.users[key] = u
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) ListUserIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.users))
	for _, u := range s.users {
		ids = append(ids, u.ID)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) CreateSession(_ context.Context, sess core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.Token]; ok {
		return core.ErrConflict
	}
	s.sessions[sess.Token] = sess
	return nil
}

func (s *Store) GetSession(_ context.Context, token string) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return core.Session{}, core.ErrNotFound
	}
	return sess, nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *Store) SaveDigest(_ context.Context, d core.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.digests[d.UserID]
	for _, x := range list {
		if x.WeekStart.Equal(d.WeekStart) {
			return core.ErrConflict
		}
	}
	s.nextID++
	d.ID = s.nextID
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().UTC()
	}
	s.digests[d.UserID] = append(list, d)
	return nil
}

// ListDigests returns the newest digests first.
func (s *Store) ListDigests(_ context.Context, userID string, limit int) ([]core.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.digests[userID])
	slices.SortFunc(out, func(a, b core.Digest) int { return b.WeekStart.Compare(a.WeekStart.Time) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) PendingExports(_ context.Context, limit int) ([]core.PendingExport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.PendingExport
	for id, st := range s.syncState {
		if st.status != core.SyncPending {
			continue
		}
		e := s.expenses[id]
		out = append(out, core.PendingExport{ID: id, UserID: e.UserID, Version: st.version, CreatedAt: e.CreatedAt})
	}
	slices.SortFunc(out, func(a, b core.PendingExport) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id int64) error {
	return s.setSync(id, core.SyncDone)
}

func (s *Store) MarkSyncError(_ context.Context, id int64) error {
	return s.setSync(id, core.SyncError)
}

func (s *Store) SyncStatus(_ context.Context, id int64) (core.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.syncState[id]
	if !ok {
		return "", core.ErrNotFound
	}
	return st.status, nil
}

func (s *Store) setSync(id int64, status core.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.syncState[id]
	if !ok {
		return core.ErrNotFound
	}
	st.status = status
	s.syncState[id] = st
	return nil
}
