package db

import (
	"database/sql"
	"fmt"
	"regexp"
)

// migrations is an ordered list of SQL migration statements.
// Each entry is applied once in order. New migrations are appended at the end.
var migrations = []string{
	// Migration 0: journal schema
	`CREATE TABLE IF NOT EXISTS responses (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		query        TEXT NOT NULL,
		tier         TEXT NOT NULL,
		unit_id      TEXT,
		similarity   REAL NOT NULL DEFAULT 0,
		tokens_saved INTEGER NOT NULL DEFAULT 0,
		session_id   TEXT,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS rotations (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		unit_id         TEXT NOT NULL,
		entries         INTEGER NOT NULL,
		original_size   INTEGER NOT NULL,
		compressed_size INTEGER NOT NULL,
		ratio           REAL NOT NULL,
		strategy        TEXT NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS evictions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		unit_id    TEXT NOT NULL,
		reason     TEXT NOT NULL,
		entries    INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_responses_created ON responses(created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_responses_tier    ON responses(tier)`,
	`CREATE INDEX IF NOT EXISTS idx_rotations_created ON rotations(created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_evictions_created ON evictions(created_at DESC)`,

	// Migration 1: migration tracking table
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
}

// applyMigrations runs any migrations that have not yet been applied.
func applyMigrations(conn *sql.DB) error {
	// Ensure the migration tracking table exists first.
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for i, stmt := range migrations {
		var count int
		row := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, i)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", i, err)
		}
		if count > 0 {
			continue
		}

		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}

		if _, err := conn.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, i); err != nil {
			return fmt.Errorf("record migration %d: %w", i, err)
		}
	}

	return nil
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// applyVectorTable creates a sqlite-vec virtual table.
func applyVectorTable(conn *sql.DB, name string, dimension int) error {
	if !tableName.MatchString(name) {
		return fmt.Errorf("create vector table: invalid name %q", name)
	}
	if dimension <= 0 {
		return fmt.Errorf("create vector table: invalid dimension %d", dimension)
	}
	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
		id TEXT PRIMARY KEY,
		embedding float[%d]
	)`, name, dimension)

	if _, err := conn.Exec(stmt); err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}
	return nil
}
