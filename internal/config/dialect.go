package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// dialect captures the differences between the supported store backends.
type dialect struct {
	name      string // sqlite, postgres, mysql
	driver    string // database/sql driver name
	returning bool   // INSERT ... RETURNING id instead of LastInsertId
	types     *strings.Replacer
}

var dialects = map[string]dialect{
	"sqlite": {
		name:   "sqlite",
		driver: "sqlite",
		types: strings.NewReplacer(
			"{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{str}}", "TEXT",
			"{{text}}", "TEXT",
			"{{bool}}", "INTEGER",
			"{{true}}", "1",
			"{{false}}", "0",
			"{{ts}}", "DATETIME",
		),
	},
	"postgres": {
		name:      "postgres",
		driver:    "pgx",
		returning: true,
		types: strings.NewReplacer(
			"{{id}}", "BIGSERIAL PRIMARY KEY",
			"{{str}}", "TEXT",
			"{{text}}", "TEXT",
			"{{bool}}", "BOOLEAN",
			"{{true}}", "TRUE",
			"{{false}}", "FALSE",
			"{{ts}}", "TIMESTAMPTZ",
		),
	},
	"mysql": {
		name:   "mysql",
		driver: "mysql",
		types: strings.NewReplacer(
			"{{id}}", "BIGINT AUTO_INCREMENT PRIMARY KEY",
			"{{str}}", "VARCHAR(191)",
			"{{text}}", "TEXT",
			"{{bool}}", "BOOLEAN",
			"{{true}}", "TRUE",
			"{{false}}", "FALSE",
			"{{ts}}", "DATETIME(6)",
		),
	},
}

func lookupDialect(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return dialects["sqlite"], nil
	case "postgres", "postgresql", "pgx":
		return dialects["postgres"], nil
	case "mysql", "mariadb":
		return dialects["mysql"], nil
	}
	return dialect{}, fmt.Errorf("%w: %q (available: sqlite, postgres, mysql)", ErrUnsupportedDriver, driver)
}

// prepareDSN adjusts a DSN so the driver returns values the store can scan.
func (d dialect) prepareDSN(dsn string) (string, error) {
	if d.name != "mysql" {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// upsertSetting returns the statement that inserts or replaces a setting.
func (d dialect) upsertSetting() string {
	if d.name == "mysql" {
		return "INSERT INTO settings (name, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)"
	}
	return "INSERT INTO settings (name, value) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET value = excluded.value"
}

// createIndex returns an idempotent index statement where the backend allows
// one. MySQL has no IF NOT EXISTS for indexes; migrate skips its duplicate
// key error instead.
func (d dialect) createIndex(name, table, cols string) string {
	if d.name == "mysql" {
		return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, table, cols)
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, table, cols)
}

// isUniqueViolation reports whether err is a unique-constraint failure on any
// supported backend.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// conflictColumn returns the first of cols named by a unique-constraint
// failure, or "" when the backend message does not identify one.
func conflictColumn(err error, cols ...string) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		msg = pgErr.ConstraintName + " " + pgErr.Detail
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		msg = myErr.Message
	}
	for _, c := range cols {
		if strings.Contains(msg, "."+c) || strings.Contains(msg, "_"+c+"_") ||
			strings.Contains(msg, "("+c+")") || strings.Contains(msg, "'"+c+"'") {
			return c
		}
	}
	return ""
}

// isDuplicateIndex reports whether err is MySQL's "duplicate key name" error.
func isDuplicateIndex(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1061
}
