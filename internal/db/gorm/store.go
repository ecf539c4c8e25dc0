package gorm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/transitops/patternmine/internal/db"
	"github.com/transitops/patternmine/pkg/models"
)

// Store is the PostgreSQL-backed implementation of db.Store.
type Store struct {
	gdb *gorm.DB

	embeddings   *EmbeddingStore
	translations *TranslationStore
	patterns     *PatternStore
}

var _ db.Store = (*Store)(nil)

// NewStore connects to PostgreSQL and runs migrations. The pgvector
// extension is created by the first migration.
func NewStore(dsn string) (*Store, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := runMigrations(gdb); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store := &Store{gdb: gdb}
	store.embeddings = &EmbeddingStore{gdb: gdb}
	store.translations = &TranslationStore{gdb: gdb}
	store.patterns = &PatternStore{gdb: gdb}
	return store, nil
}

func runMigrations(gdb *gorm.DB) error {
	m := gormigrate.New(gdb, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202608_create_vector_extension",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error
			},
			Rollback: func(tx *gorm.DB) error { return nil },
		},
		{
			ID: "202608_create_cache_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&EmbeddingCacheEntry{}, &TranslationCacheEntry{}, &PatternRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("embedding_cache", "translation_cache", "patterns")
			},
		},
	})
	return m.Migrate()
}

// Embeddings returns the embedding cache store.
func (s *Store) Embeddings() db.EmbeddingCacheStore { return s.embeddings }

// Translations returns the translation cache store.
func (s *Store) Translations() db.TranslationCacheStore { return s.translations }

// Patterns returns the pattern store.
func (s *Store) Patterns() db.PatternStore { return s.patterns }

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EmbeddingStore persists embeddings as pgvector columns.
type EmbeddingStore struct {
	gdb *gorm.DB
}

// Load returns cached vectors for the given IDs.
func (s *EmbeddingStore) Load(ctx context.Context, ids []string) (map[string][]float32, error) {
	result := make(map[string][]float32, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var entries []EmbeddingCacheEntry
	if err := s.gdb.WithContext(ctx).Where("incident_id IN ?", ids).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	for _, e := range entries {
		result[e.IncidentID] = e.Vector.Slice()
	}
	return result, nil
}

// Save upserts the given entries. Zero entries is a no-op.
func (s *EmbeddingStore) Save(ctx context.Context, entries map[string][]float32) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]EmbeddingCacheEntry, 0, len(entries))
	now := time.Now().UTC()
	for id, vec := range entries {
		rows = append(rows, EmbeddingCacheEntry{
			IncidentID: id,
			Vector:     pgvector.NewVector(vec),
			Dimensions: len(vec),
			UpdatedAt:  now,
		})
	}

	err := s.gdb.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "incident_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vector", "dimensions", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("save embeddings: %w", err)
	}
	return nil
}

// TranslationStore persists translations.
type TranslationStore struct {
	gdb *gorm.DB
}

// Load returns cached translations for the given IDs.
func (s *TranslationStore) Load(ctx context.Context, ids []string) (map[string]models.Translation, error) {
	result := make(map[string]models.Translation, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var entries []TranslationCacheEntry
	if err := s.gdb.WithContext(ctx).Where("incident_id IN ?", ids).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}
	for _, e := range entries {
		result[e.IncidentID] = models.Translation{Summary: e.Summary, Keywords: e.Keywords}
	}
	return result, nil
}

// Save upserts the given entries. Zero entries is a no-op.
func (s *TranslationStore) Save(ctx context.Context, entries map[string]models.Translation) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]TranslationCacheEntry, 0, len(entries))
	now := time.Now().UTC()
	for id, tr := range entries {
		rows = append(rows, TranslationCacheEntry{
			IncidentID: id,
			Summary:    tr.Summary,
			Keywords:   tr.Keywords,
			UpdatedAt:  now,
		})
	}

	err := s.gdb.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "incident_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "keywords", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("save translations: %w", err)
	}
	return nil
}

// PatternStore persists synthesized patterns.
type PatternStore struct {
	gdb *gorm.DB
}

// SavePatterns inserts the given patterns. Zero patterns is a no-op.
func (s *PatternStore) SavePatterns(ctx context.Context, patterns []*models.Pattern) error {
	if len(patterns) == 0 {
		return nil
	}

	rows := make([]PatternRow, 0, len(patterns))
	for _, p := range patterns {
		filtersJSON, err := json.Marshal(p.Filters)
		if err != nil {
			return fmt.Errorf("encode filters for %s: %w", p.ID, err)
		}
		rows = append(rows, PatternRow{
			ID:             p.ID,
			Title:          p.Title,
			Description:    p.Description,
			Filters:        string(filtersJSON),
			Priority:       p.Priority,
			Frequency:      p.Frequency,
			TimeRangeStart: p.TimeRangeStart,
			TimeRangeEnd:   p.TimeRangeEnd,
			IncidentIDs:    p.IncidentIDs,
			CreatedAt:      p.CreatedAt,
		})
	}

	err := s.gdb.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("save patterns: %w", err)
	}
	return nil
}

// RecentPatterns returns the most recently created patterns, newest first.
func (s *PatternStore) RecentPatterns(ctx context.Context, limit int) ([]*models.Pattern, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []PatternRow
	if err := s.gdb.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}

	patterns := make([]*models.Pattern, 0, len(rows))
	for _, r := range rows {
		p := &models.Pattern{
			ID:             r.ID,
			Title:          r.Title,
			Description:    r.Description,
			Priority:       r.Priority,
			Frequency:      r.Frequency,
			TimeRangeStart: r.TimeRangeStart,
			TimeRangeEnd:   r.TimeRangeEnd,
			IncidentIDs:    r.IncidentIDs,
			CreatedAt:      r.CreatedAt,
		}
		if err := json.Unmarshal([]byte(r.Filters), &p.Filters); err != nil {
			return nil, fmt.Errorf("decode filters for %s: %w", r.ID, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}
