// Package gorm provides the PostgreSQL storage backend, with embedding
// vectors persisted as pgvector columns.
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
)

// JSONStringArray stores a []string as a JSON column.
type JSONStringArray []string

// Value implements driver.Valuer.
func (a JSONStringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(a))
	return string(data), err
}

// Scan implements sql.Scanner.
func (a *JSONStringArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported type for JSONStringArray: %T", value)
	}
}

// EmbeddingCacheEntry is one cached incident embedding.
type EmbeddingCacheEntry struct {
	IncidentID string          `gorm:"primaryKey;size:128"`
	Vector     pgvector.Vector `gorm:"type:vector(384)"`
	Dimensions int             `gorm:"not null"`
	UpdatedAt  time.Time
}

// TableName overrides the gorm default.
func (EmbeddingCacheEntry) TableName() string { return "embedding_cache" }

// TranslationCacheEntry is one cached incident translation.
type TranslationCacheEntry struct {
	IncidentID string          `gorm:"primaryKey;size:128"`
	Summary    string          `gorm:"not null"`
	Keywords   JSONStringArray `gorm:"type:jsonb;not null"`
	UpdatedAt  time.Time
}

// TableName overrides the gorm default.
func (TranslationCacheEntry) TableName() string { return "translation_cache" }

// PatternRow is one persisted synthesized pattern.
type PatternRow struct {
	ID             string          `gorm:"primaryKey;size:64"`
	Title          string          `gorm:"not null"`
	Description    string          `gorm:"not null"`
	Filters        string          `gorm:"type:jsonb;not null"`
	Priority       int             `gorm:"not null"`
	Frequency      int             `gorm:"not null"`
	TimeRangeStart time.Time       `gorm:"not null"`
	TimeRangeEnd   time.Time       `gorm:"not null"`
	IncidentIDs    JSONStringArray `gorm:"type:jsonb;not null"`
	CreatedAt      time.Time       `gorm:"index:idx_patterns_created_at,sort:desc"`
}

// TableName overrides the gorm default.
func (PatternRow) TableName() string { return "patterns" }
