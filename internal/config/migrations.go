package config

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	d := s.dialect
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id {{id}},
			username {{str}} NOT NULL UNIQUE,
			email {{str}} UNIQUE,
			phone {{str}} UNIQUE,
			real_name {{str}} NOT NULL DEFAULT '',
			password_hash {{str}} NOT NULL,
			user_type {{str}} NOT NULL DEFAULT 'user',
			credit_points BIGINT NOT NULL DEFAULT 0,
			is_verified {{bool}} NOT NULL DEFAULT {{false}},
			is_active {{bool}} NOT NULL DEFAULT {{true}},
			last_login_at {{ts}},
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS access_denials (
			id {{id}},
			request_id {{str}} NOT NULL DEFAULT '',
			user_id BIGINT,
			role {{str}} NOT NULL DEFAULT '',
			method {{str}} NOT NULL DEFAULT '',
			path {{text}} NOT NULL,
			reason {{str}} NOT NULL,
			required_permission {{str}} NOT NULL DEFAULT '',
			required_role {{str}} NOT NULL DEFAULT '',
			created_at {{ts}} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			name {{str}} PRIMARY KEY,
			value {{text}} NOT NULL
		)`,

		d.createIndex("idx_users_user_type", "users", "user_type"),
		d.createIndex("idx_access_denials_created_at", "access_denials", "created_at"),
		d.createIndex("idx_access_denials_user_id", "access_denials", "user_id"),
	}

	for _, m := range migrations {
		stmt := d.types.Replace(m)
		if _, err := s.db.Exec(stmt); err != nil {
			if isDuplicateIndex(err) || strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
