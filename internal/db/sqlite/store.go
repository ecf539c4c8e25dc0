// Package sqlite provides the embedded storage backend, using the pure-Go
// SQLite driver.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/transitops/patternmine/internal/db"
)

// Store is the SQLite-backed implementation of db.Store.
type Store struct {
	db *sql.DB

	embeddings   *EmbeddingStore
	translations *TranslationStore
	patterns     *PatternStore
}

// Config holds configuration for the SQLite store.
type Config struct {
	Path     string
	MaxConns int
}

var _ db.Store = (*Store)(nil)

// NewStore opens (and migrates) the database at the configured path.
func NewStore(cfg Config) (*Store, error) {
	dsn := "file:" + cfg.Path +
		"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store := &Store{db: sqlDB}
	store.embeddings = &EmbeddingStore{db: sqlDB}
	store.translations = &TranslationStore{db: sqlDB}
	store.patterns = &PatternStore{db: sqlDB}
	return store, nil
}

// Embeddings returns the embedding cache store.
func (s *Store) Embeddings() db.EmbeddingCacheStore { return s.embeddings }

// Translations returns the translation cache store.
func (s *Store) Translations() db.TranslationCacheStore { return s.translations }

// Patterns returns the pattern store.
func (s *Store) Patterns() db.PatternStore { return s.patterns }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// placeholders returns "?,?,..." for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
