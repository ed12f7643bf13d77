package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/model"
)

// Store persists user accounts, access-denial records, and instance settings.
// SQLite is the default backend; PostgreSQL and MySQL are selected with Open.
type Store struct {
	db      *sqlx.DB
	dialect dialect
}

// NewStore creates a SQLite-backed store in dataDir. Pass empty string for
// in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "neighborly.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return Open("sqlite", dsn)
}

// Open connects to the store backend named by driver and runs migrations.
func Open(driver, dsn string) (*Store, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	dsn, err = d.prepareDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", d.name, err)
	}

	if d.name == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &Store{db: db, dialect: d}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s store: %w", d.name, err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the backend name: sqlite, postgres or mysql.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Ping verifies the store connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// insert runs a named INSERT and returns the generated id.
func (s *Store) insert(ctx context.Context, q string, arg interface{}) (int64, error) {
	if s.dialect.returning {
		rows, err := s.db.NamedQueryContext(ctx, q+" RETURNING id", arg)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		var id int64
		if rows.Next() {
			if err := rows.Scan(&id); err != nil {
				return 0, err
			}
		}
		return id, rows.Err()
	}

	result, err := s.db.NamedExecContext(ctx, q, arg)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// exec runs a positional statement and maps zero affected rows to ErrNotFound.
func (s *Store) exec(ctx context.Context, q string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

const userColumns = `id, username, email, phone, real_name, password_hash, user_type,
	credit_points, is_verified, is_active, last_login_at, created_at, updated_at`

// CreateUser inserts a new account. The ID, CreatedAt, and UpdatedAt fields on
// u are populated after a successful insert. An empty role defaults to user.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.Role == "" {
		u.Role = authz.RoleUser
	}
	if !u.Role.Valid() {
		return fmt.Errorf("create user: %w: %q", authz.ErrUnknownRole, string(u.Role))
	}
	u.Email = nullIfBlank(u.Email)
	u.Phone = nullIfBlank(u.Phone)

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	const q = `INSERT INTO users
		(username, email, phone, real_name, password_hash, user_type,
		 credit_points, is_verified, is_active, created_at, updated_at)
		VALUES
		(:username, :email, :phone, :real_name, :password_hash, :user_type,
		 :credit_points, :is_verified, :is_active, :created_at, :updated_at)`

	id, err := s.insert(ctx, q, u)
	if err != nil {
		if isUniqueViolation(err) {
			if col := conflictColumn(err, "username", "email", "phone"); col != "" {
				return fmt.Errorf("create user: %s %w", col, ErrConflict)
			}
			return fmt.Errorf("create user: %w", ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	return nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByUsername returns a user by its unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *Store) getUser(ctx context.Context, where string, arg interface{}) (*model.User, error) {
	var u model.User
	q := s.db.Rebind("SELECT " + userColumns + " FROM users WHERE " + where)
	if err := s.db.GetContext(ctx, &u, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ListUsers returns users ordered by ID along with the total count matching
// the filter.
func (s *Store) ListUsers(ctx context.Context, f model.UserFilter) ([]model.User, int64, error) {
	var where []string
	var args []interface{}
	if f.Role != "" {
		where = append(where, "user_type = ?")
		args = append(args, f.Role)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, s.db.Rebind("SELECT COUNT(*) FROM users"+clause), args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	q := "SELECT " + userColumns + " FROM users" + clause + " ORDER BY id" + limitClause(f.Limit, f.Offset)
	users := []model.User{}
	if err := s.db.SelectContext(ctx, &users, s.db.Rebind(q), args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// SetUserRole assigns a new role to a user. Only roles from the enumeration
// are accepted.
func (s *Store) SetUserRole(ctx context.Context, id int64, role authz.Role) error {
	if !role.Valid() {
		return fmt.Errorf("set user role: %w: %q", authz.ErrUnknownRole, string(role))
	}
	err := s.exec(ctx, "UPDATE users SET user_type = ?, updated_at = ? WHERE id = ?",
		role, time.Now().UTC(), id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("set user role: %w", err)
	}
	return err
}

// SetUserActive enables or disables an account.
func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	err := s.exec(ctx, "UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?",
		active, time.Now().UTC(), id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("set user active: %w", err)
	}
	return err
}

// UpdateLastLogin sets the last_login_at timestamp for a user.
func (s *Store) UpdateLastLogin(ctx context.Context, id int64) error {
	err := s.exec(ctx, "UPDATE users SET last_login_at = ? WHERE id = ?", time.Now().UTC(), id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("update last login: %w", err)
	}
	return err
}

// CountUsersByRole returns the number of accounts per role, ordered by role.
func (s *Store) CountUsersByRole(ctx context.Context) ([]model.RoleCount, error) {
	counts := []model.RoleCount{}
	const q = "SELECT user_type, COUNT(*) AS count FROM users GROUP BY user_type ORDER BY user_type"
	if err := s.db.SelectContext(ctx, &counts, q); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	return counts, nil
}

// CountUsers returns the total and active account counts.
func (s *Store) CountUsers(ctx context.Context) (total, active int64, err error) {
	if err = s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, 0, fmt.Errorf("count users: %w", err)
	}
	q := s.db.Rebind("SELECT COUNT(*) FROM users WHERE is_active = ?")
	if err = s.db.GetContext(ctx, &active, q, true); err != nil {
		return 0, 0, fmt.Errorf("count active users: %w", err)
	}
	return total, active, nil
}

// ---------------------------------------------------------------------------
// Access denials
// ---------------------------------------------------------------------------

// RecordDenial persists an access-denied event. CreatedAt is set when zero.
func (s *Store) RecordDenial(ctx context.Context, d *model.Denial) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO access_denials
		(request_id, user_id, role, method, path, reason, required_permission, required_role, created_at)
		VALUES
		(:request_id, :user_id, :role, :method, :path, :reason, :required_permission, :required_role, :created_at)`

	id, err := s.insert(ctx, q, d)
	if err != nil {
		return fmt.Errorf("insert denial: %w", err)
	}
	d.ID = id
	return nil
}

// ListDenials returns recorded denials, newest first.
func (s *Store) ListDenials(ctx context.Context, f model.DenialFilter) ([]model.Denial, error) {
	var where []string
	var args []interface{}
	if f.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.Reason != "" {
		where = append(where, "reason = ?")
		args = append(args, f.Reason)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}

	q := `SELECT id, request_id, user_id, role, method, path, reason,
		required_permission, required_role, created_at FROM access_denials`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC" + limitClause(f.Limit, f.Offset)

	denials := []model.Denial{}
	if err := s.db.SelectContext(ctx, &denials, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list denials: %w", err)
	}
	return denials, nil
}

// CountDenials returns the number of recorded denials.
func (s *Store) CountDenials(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM access_denials"); err != nil {
		return 0, fmt.Errorf("count denials: %w", err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns the value stored under key.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	q := s.db.Rebind("SELECT value FROM settings WHERE name = ?")
	if err := s.db.GetContext(ctx, &v, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return v, nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(s.dialect.upsertSetting()), key, value); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Utility
// ---------------------------------------------------------------------------

func limitClause(limit, offset int) string {
	if limit <= 0 {
		if offset > 0 {
			// MySQL and SQLite need a LIMIT before OFFSET.
			return fmt.Sprintf(" LIMIT %d OFFSET %d", int64(1<<62), offset)
		}
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}

func nullIfBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
