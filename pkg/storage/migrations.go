package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS price_alerts (
		id             TEXT PRIMARY KEY,
		email          TEXT NOT NULL DEFAULT '',
		origin         TEXT NOT NULL,
		destination    TEXT NOT NULL,
		departure_date TEXT NOT NULL,
		return_date    TEXT NOT NULL DEFAULT '',
		target_price   TEXT NOT NULL,
		currency       TEXT NOT NULL DEFAULT 'USD',
		travel_class   TEXT NOT NULL DEFAULT 'ECONOMY',
		adults         INTEGER NOT NULL DEFAULT 1,
		children       INTEGER NOT NULL DEFAULT 0,
		infants        INTEGER NOT NULL DEFAULT 0,
		frequency      TEXT NOT NULL DEFAULT 'daily',
		active         INTEGER NOT NULL DEFAULT 1,
		current_price  TEXT,
		last_checked   DATETIME,
		price_history  TEXT NOT NULL DEFAULT '[]',
		triggered_at   DATETIME,
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_active ON price_alerts(active);
	CREATE INDEX IF NOT EXISTS idx_alerts_email ON price_alerts(email);
	CREATE INDEX IF NOT EXISTS idx_alerts_created ON price_alerts(created_at);

	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
