package database

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = map[string][]string{
	"mysql": {
		`CREATE TABLE IF NOT EXISTS users (
			user_id    BIGINT      NOT NULL PRIMARY KEY,
			plan       VARCHAR(32) NOT NULL,
			created_at DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS daily_usage (
			user_id    BIGINT       NOT NULL,
			day        DATE         NOT NULL,
			pages_used INT UNSIGNED NOT NULL DEFAULT 0,
			updated_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, day)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS users (
			user_id    INTEGER NOT NULL PRIMARY KEY,
			plan       TEXT    NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS daily_usage (
			user_id    INTEGER NOT NULL,
			day        TEXT    NOT NULL,
			pages_used INTEGER NOT NULL DEFAULT 0 CHECK (pages_used >= 0),
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, day)
		)`,
	},
}

// Migrate creates the users and daily_usage tables when they do not exist.
// It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	stmts, ok := schema[driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q", driver)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
