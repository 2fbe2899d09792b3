package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"weekspend/internal/core"

	_ "modernc.org/sqlite"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// SQLiteRepository implements ports.Store on a single SQLite file.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(timestampLayout)
}

const expenseColumns = `id, user_id, amount_cents, description, category_name, tag,
	expense_date, expense_time, day_of_week, is_saving, saving_amount_cents, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                  core.Expense
		date, created      string
		isSaving           int64
		amount, savingCent int64
	)
	if err := s.Scan(&e.ID, &e.UserID, &amount, &e.Description, &e.CategoryName, &e.Tag,
		&date, &e.Time, &e.DayOfWeek, &isSaving, &savingCent, &created); err != nil {
		return core.Expense{}, err
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse expense_date %q: %w", date, err)
	}
	e.Date = core.Date{Time: d}
	e.Amount = core.Money{Cents: amount}
	e.IsSaving = isSaving != 0
	e.SavingAmount = core.Money{Cents: savingCent}
	e.CreatedAt, _ = time.Parse(timestampLayout, created)
	return e, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO expenses
		(user_id, amount_cents, description, category_name, tag, expense_date, expense_time,
		 day_of_week, is_saving, saving_amount_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Amount.Cents, e.Description, e.Category(), e.Tag,
		e.Date.Format(dateLayout), e.Time, e.DayOfWeek, boolInt(e.IsSaving),
		e.SavingAmount.Cents, e.CreatedAt.Format(timestampLayout))
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	e.ID = id
	e.CategoryName = e.Category()

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user_id", e.UserID,
		"amount_cents", e.Amount.Cents,
		"expense_date", e.Date.Format(dateLayout))

	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string, from, to core.Date) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = ? AND expense_date BETWEEN ? AND ?
		ORDER BY expense_date ASC, id ASC`,
		userID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, name, icon, color, is_default
		FROM categories WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c         core.Category
			isDefault int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Icon, &c.Color, &isDefault); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.IsDefault = isDefault != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateCategories(ctx context.Context, userID string, cats []core.Category) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cats {
		if _, err := tx.ExecContext(ctx, `INSERT INTO categories (user_id, name, icon, color, is_default)
			VALUES (?, ?, ?, ?, ?) ON CONFLICT (user_id, name) DO NOTHING`,
			userID, c.Name, c.Icon, c.Color, boolInt(c.IsDefault)); err != nil {
			return fmt.Errorf("insert category %q: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	var (
		p       core.Profile
		goal    int64
		updated string
	)
	err := r.db.QueryRowContext(ctx, `SELECT user_id, currency, week_start_day, monthly_savings_goal_cents, updated_at
		FROM user_profiles WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.Currency, &p.WeekStartDay, &goal, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, core.ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	p.MonthlySavingsGoal = core.Money{Cents: goal}
	p.UpdatedAt, _ = time.Parse(timestampLayout, updated)
	return p, nil
}

func (r *SQLiteRepository) UpsertProfile(ctx context.Context, p core.Profile) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_profiles
		(user_id, currency, week_start_day, monthly_savings_goal_cents, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			currency = excluded.currency,
			week_start_day = excluded.week_start_day,
			monthly_savings_goal_cents = excluded.monthly_savings_goal_cents,
			updated_at = excluded.updated_at`,
		p.UserID, p.Currency, p.WeekStartDay, p.MonthlySavingsGoal.Cents, r.stamp())
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		u.ID, strings.ToLower(u.Email), u.PasswordHash, u.CreatedAt.Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrConflict
	}
	return nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`,
		strings.ToLower(email)).Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(timestampLayout, created)
	return u, nil
}

func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s core.Session) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		s.Token, s.UserID, s.CreatedAt.UTC().Format(timestampLayout), s.ExpiresAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrConflict
	}
	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, token string) (core.Session, error) {
	var (
		s                core.Session
		created, expires string
	)
	err := r.db.QueryRowContext(ctx, `SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&s.Token, &s.UserID, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, core.ErrNotFound
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("get session: %w", err)
	}
	s.CreatedAt, _ = time.Parse(timestampLayout, created)
	if s.ExpiresAt, err = time.Parse(timestampLayout, expires); err != nil {
		return core.Session{}, fmt.Errorf("parse session expiry: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SaveDigest(ctx context.Context, d core.Digest) error {
	insights, err := json.Marshal(nonNilInsights(d.Insights))
	if err != nil {
		return fmt.Errorf("encode insights: %w", err)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO weekly_digests
		(user_id, week_start, spent_cents, saved_cents, insights, created_at)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (user_id, week_start) DO NOTHING`,
		d.UserID, d.WeekStart.Format(dateLayout), d.Spent.Cents, d.Saved.Cents, string(insights),
		d.CreatedAt.Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("save digest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrConflict
	}
	return nil
}

func (r *SQLiteRepository) ListDigests(ctx context.Context, userID string, limit int) ([]core.Digest, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, week_start, spent_cents, saved_cents, insights, created_at
		FROM weekly_digests WHERE user_id = ? ORDER BY week_start DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list digests: %w", err)
	}
	defer rows.Close()

	var out []core.Digest
	for rows.Next() {
		var (
			d                       core.Digest
			week, insights, created string
			spent, saved            int64
		)
		if err := rows.Scan(&d.ID, &d.UserID, &week, &spent, &saved, &insights, &created); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		t, err := time.Parse(dateLayout, week)
		if err != nil {
			return nil, fmt.Errorf("parse week_start %q: %w", week, err)
		}
		d.WeekStart = core.Date{Time: t}
		d.Spent = core.Money{Cents: spent}
		d.Saved = core.Money{Cents: saved}
		if err := json.Unmarshal([]byte(insights), &d.Insights); err != nil {
			return nil, fmt.Errorf("decode insights: %w", err)
		}
		d.CreatedAt, _ = time.Parse(timestampLayout, created)
		out = append(out, d)
	}
	return out, rows.Err()
}

// PendingExports returns expenses that still need to be exported, oldest first.
func (r *SQLiteRepository) PendingExports(ctx context.Context, limit int) ([]core.PendingExport, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, version, created_at FROM expenses
		WHERE sync_status = ? ORDER BY id LIMIT ?`, string(core.SyncPending), limit)
	if err != nil {
		return nil, fmt.Errorf("get pending exports: %w", err)
	}
	defer rows.Close()

	var out []core.PendingExport
	for rows.Next() {
		var (
			p       core.PendingExport
			created string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Version, &created); err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		p.CreatedAt, _ = time.Parse(timestampLayout, created)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced marks an expense as successfully exported
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET sync_status = ?, synced_at = ? WHERE id = ?`,
		string(core.SyncDone), r.stamp(), id)
	if err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Expense marked as synced", "id", id)
	return nil
}

// MarkSyncError marks an expense as having export errors
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET sync_status = ? WHERE id = ?`,
		string(core.SyncError), id)
	if err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Expense marked with sync error", "id", id)
	return nil
}

// SyncStatus returns the export state of an expense
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id int64) (core.SyncStatus, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT sync_status FROM expenses WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get sync status: %w", err)
	}
	return core.SyncStatus(status), nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func nonNilInsights(in []core.InsightRecord) []core.InsightRecord {
	if in == nil {
		return []core.InsightRecord{}
	}
	return in
}
