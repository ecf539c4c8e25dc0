package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// migration is one versioned schema step. Migrations run in order inside a
// transaction each and are recorded in schema_migrations.
type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create_embedding_cache",
		sql: `CREATE TABLE IF NOT EXISTS embedding_cache (
			incident_id      TEXT PRIMARY KEY,
			vector           TEXT NOT NULL,
			dimensions       INTEGER NOT NULL,
			updated_at_epoch INTEGER NOT NULL
		)`,
	},
	{
		version: 2,
		name:    "create_translation_cache",
		sql: `CREATE TABLE IF NOT EXISTS translation_cache (
			incident_id      TEXT PRIMARY KEY,
			summary          TEXT NOT NULL,
			keywords         TEXT NOT NULL,
			updated_at_epoch INTEGER NOT NULL
		)`,
	},
	{
		version: 3,
		name:    "create_patterns",
		sql: `CREATE TABLE IF NOT EXISTS patterns (
			id                     TEXT PRIMARY KEY,
			title                  TEXT NOT NULL,
			description            TEXT NOT NULL,
			filters                TEXT NOT NULL,
			priority               INTEGER NOT NULL,
			frequency              INTEGER NOT NULL,
			time_range_start_epoch INTEGER NOT NULL,
			time_range_end_epoch   INTEGER NOT NULL,
			incident_ids           TEXT NOT NULL,
			created_at_epoch       INTEGER NOT NULL
		)`,
	},
	{
		version: 4,
		name:    "index_patterns_created_at",
		sql:     `CREATE INDEX IF NOT EXISTS idx_patterns_created_at ON patterns(created_at_epoch DESC)`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name    TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
		log.Debug().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
	}
	return nil
}
