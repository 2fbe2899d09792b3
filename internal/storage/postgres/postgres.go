// Package postgres provides a PostgreSQL implementation of ports.Store.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"weekspend/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// Config holds the PostgreSQL connection settings. URL, when set, takes
// precedence over the individual fields.
type Config struct {
	URL         string
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	SSLMode     string
	MaxPoolSize int
}

func (c Config) connString() string {
	if c.URL != "" {
		return c.URL
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.User, c.Password, c.Database, sslMode)
}

// Store is a pgx-backed ports.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects, pings and applies the embedded schema.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	if cfg.MaxPoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{pool: pool, logger: logger}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Info("connected to PostgreSQL", "host", poolConfig.ConnConfig.Host, "database", poolConfig.ConnConfig.Database)
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const expenseColumns = `id, user_id, amount_cents, description, category_name, tag,
	expense_date, expense_time, day_of_week, is_saving, saving_amount_cents, created_at`

func scanExpense(row pgx.Row) (core.Expense, error) {
	var (
		e              core.Expense
		date           time.Time
		amount, saving int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &amount, &e.Description, &e.CategoryName, &e.Tag,
		&date, &e.Time, &e.DayOfWeek, &e.IsSaving, &saving, &e.CreatedAt); err != nil {
		return core.Expense{}, err
	}
	e.Date = core.DateOf(date)
	e.Amount = core.Money{Cents: amount}
	e.SavingAmount = core.Money{Cents: saving}
	return e, nil
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.CategoryName = e.Category()
	err := s.pool.QueryRow(ctx, `INSERT INTO expenses
		(user_id, amount_cents, description, category_name, tag, expense_date, expense_time,
		 day_of_week, is_saving, saving_amount_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		e.UserID, e.Amount.Cents, e.Description, e.CategoryName, e.Tag, e.Date.Time,
		e.Time, e.DayOfWeek, e.IsSaving, e.SavingAmount.Cents).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return e, nil
}

func (s *Store) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := scanExpense(s.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, userID string, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireAffected(tag)
}

func (s *Store) ListExpenses(ctx context.Context, userID string, from, to core.Date) ([]core.Expense, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = $1 AND expense_date BETWEEN $2 AND $3
		ORDER BY expense_date ASC, id ASC`, userID, from.Time, to.Time)
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

func (s *Store) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, user_id, name, icon, color, is_default
		FROM categories WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Icon, &c.Color, &c.IsDefault); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCategories(ctx context.Context, userID string, cats []core.Category) error {
	batch := &pgx.Batch{}
	for _, c := range cats {
		batch.Queue(`INSERT INTO categories (user_id, name, icon, color, is_default)
			VALUES ($1, $2, $3, $4, $5) ON CONFLICT (user_id, name) DO NOTHING`,
			userID, c.Name, c.Icon, c.Color, c.IsDefault)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("create categories: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	var (
		p    core.Profile
		goal int64
	)
	err := s.pool.QueryRow(ctx, `SELECT user_id, currency, week_start_day, monthly_savings_goal_cents, updated_at
		FROM user_profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.Currency, &p.WeekStartDay, &goal, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Profile{}, core.ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	p.MonthlySavingsGoal = core.Money{Cents: goal}
	return p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p core.Profile) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO user_profiles
		(user_id, currency, week_start_day, monthly_savings_goal_cents, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			currency = EXCLUDED.currency,
			week_start_day = EXCLUDED.week_start_day,
			monthly_savings_goal_cents = EXCLUDED.monthly_savings_goal_cents,
			updated_at = NOW()`,
		p.UserID, p.Currency, p.WeekStartDay, p.MonthlySavingsGoal.Cents)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	tag, err := s.pool.Exec(ctx, `INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		u.ID, strings.ToLower(u.Email), u.PasswordHash)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrConflict
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var u core.User
	err := s.pool.QueryRow(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		strings.ToLower(email)).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect users: %w", err)
	}
	return ids, nil
}

func (s *Store) CreateSession(ctx context.Context, sess core.Session) error {
	tag, err := s.pool.Exec(ctx, `INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrConflict
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (core.Session, error) {
	var sess core.Session
	err := s.pool.QueryRow(ctx, `SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = $1`, token).
		Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Session{}, core.ErrNotFound
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) SaveDigest(ctx context.Context, d core.Digest) error {
	insights := d.Insights
	if insights == nil {
		insights = []core.InsightRecord{}
	}
	raw, err := json.Marshal(insights)
	if err != nil {
		return fmt.Errorf("encode insights: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `INSERT INTO weekly_digests (user_id, week_start, spent_cents, saved_cents, insights)
		VALUES ($1, $2, $3, $4, $5::jsonb) ON CONFLICT (user_id, week_start) DO NOTHING`,
		d.UserID, d.WeekStart.Time, d.Spent.Cents, d.Saved.Cents, string(raw))
	if err != nil {
		return fmt.Errorf("save digest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrConflict
	}
	return nil
}

func (s *Store) ListDigests(ctx context.Context, userID string, limit int) ([]core.Digest, error) {
	query := `SELECT id, user_id, week_start, spent_cents, saved_cents, insights, created_at
		FROM weekly_digests WHERE user_id = $1 ORDER BY week_start DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list digests: %w", err)
	}
	defer rows.Close()

	var out []core.Digest
	for rows.Next() {
		var (
			d            core.Digest
			week         time.Time
			spent, saved int64
			raw          []byte
		)
		if err := rows.Scan(&d.ID, &d.UserID, &week, &spent, &saved, &raw, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		if err := json.Unmarshal(raw, &d.Insights); err != nil {
			return nil, fmt.Errorf("decode insights: %w", err)
		}
		d.WeekStart = core.DateOf(week)
		d.Spent = core.Money{Cents: spent}
		d.Saved = core.Money{Cents: saved}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) PendingExports(ctx context.Context, limit int) ([]core.PendingExport, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, user_id, version, created_at FROM expenses
		WHERE sync_status = $1 ORDER BY id LIMIT $2`, string(core.SyncPending), limit)
	if err != nil {
		return nil, fmt.Errorf("get pending exports: %w", err)
	}
	defer rows.Close()

	var out []core.PendingExport
	for rows.Next() {
		var p core.PendingExport
		if err := rows.Scan(&p.ID, &p.UserID, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) MarkSynced(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE expenses SET sync_status = $1, synced_at = NOW() WHERE id = $2`,
		string(core.SyncDone), id)
	if err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	return requireAffected(tag)
}

func (s *Store) MarkSyncError(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE expenses SET sync_status = $1 WHERE id = $2`,
		string(core.SyncError), id)
	if err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	if err := requireAffected(tag); err != nil {
		return err
	}
	s.logger.WarnContext(ctx, "Expense marked with sync error", "id", id)
	return nil
}

func (s *Store) SyncStatus(ctx context.Context, id int64) (core.SyncStatus, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT sync_status FROM expenses WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get sync status: %w", err)
	}
	return core.SyncStatus(status), nil
}

func requireAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
