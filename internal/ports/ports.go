// Package ports declares the persistence interfaces the services depend on.
//
// Every backend (memory, sqlite, postgres) implements Store. Lookups that
// find nothing return core.ErrNotFound; uniqueness violations return
// core.ErrConflict.
package ports

import (
	"context"

	"weekspend/internal/core"
)

type (
	ExpenseStore interface {
		// CreateExpense stores e and returns it with ID and CreatedAt set.
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		GetExpense(ctx context.Context, id int64) (core.Expense, error)
		// DeleteExpense removes the expense only if it belongs to userID.
		DeleteExpense(ctx context.Context, userID string, id int64) error
		// ListExpenses returns the user's expenses dated within [from, to],
		// ordered by date then insertion.
		ListExpenses(ctx context.Context, userID string, from, to core.Date) ([]core.Expense, error)
	}

	CategoryStore interface {
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
		CreateCategories(ctx context.Context, userID string, cats []core.Category) error
	}

	ProfileStore interface {
		GetProfile(ctx context.Context, userID string) (core.Profile, error)
		UpsertProfile(ctx context.Context, p core.Profile) error
	}

	UserStore interface {
		CreateUser(ctx context.Context, u core.User) error
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		ListUserIDs(ctx context.Context) ([]string, error)
	}

	SessionStore interface {
		CreateSession(ctx context.Context, s core.Session) error
		GetSession(ctx context.Context, token string) (core.Session, error)
		DeleteSession(ctx context.Context, token string) error
	}

	DigestStore interface {
		// SaveDigest stores d; a second digest for the same user and week
		// returns core.ErrConflict.
		SaveDigest(ctx context.Context, d core.Digest) error
		ListDigests(ctx context.Context, userID string, limit int) ([]core.Digest, error)
	}

	SyncStore interface {
		PendingExports(ctx context.Context, limit int) ([]core.PendingExport, error)
		MarkSynced(ctx context.Context, id int64) error
		MarkSyncError(ctx context.Context, id int64) error
		// SyncStatus returns core.ErrNotFound for unknown expenses.
		SyncStatus(ctx context.Context, id int64) (core.SyncStatus, error)
	}

	// Store is the full persistence surface of a backend.
	Store interface {
		ExpenseStore
		CategoryStore
		ProfileStore
		UserStore
		SessionStore
		DigestStore
		SyncStore
		Ping(ctx context.Context) error
		Close() error
	}
)
