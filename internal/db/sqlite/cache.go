package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/transitops/patternmine/pkg/models"
)

// EmbeddingStore persists incident embeddings as JSON-encoded float arrays.
type EmbeddingStore struct {
	db *sql.DB
}

// Load returns cached vectors for the given IDs.
func (s *EmbeddingStore) Load(ctx context.Context, ids []string) (map[string][]float32, error) {
	result := make(map[string][]float32, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT incident_id, vector FROM embedding_cache WHERE incident_id IN (` + placeholders(len(ids)) + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, vectorJSON string
		if err := rows.Scan(&id, &vectorJSON); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vectorJSON), &vec); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", id, err)
		}
		result[id] = vec
	}
	return result, rows.Err()
}

// Save upserts the given entries. Zero entries is a no-op.
func (s *EmbeddingStore) Save(ctx context.Context, entries map[string][]float32) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin embedding save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO embedding_cache (incident_id, vector, dimensions, updated_at_epoch)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(incident_id) DO UPDATE SET vector = excluded.vector,
			dimensions = excluded.dimensions, updated_at_epoch = excluded.updated_at_epoch`)
	if err != nil {
		return fmt.Errorf("prepare embedding upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for id, vec := range entries {
		vectorJSON, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("encode embedding for %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, string(vectorJSON), len(vec), now); err != nil {
			return fmt.Errorf("upsert embedding for %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// TranslationStore persists incident translations.
type TranslationStore struct {
	db *sql.DB
}

// Load returns cached translations for the given IDs.
func (s *TranslationStore) Load(ctx context.Context, ids []string) (map[string]models.Translation, error) {
	result := make(map[string]models.Translation, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT incident_id, summary, keywords FROM translation_cache WHERE incident_id IN (` + placeholders(len(ids)) + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, summary, keywordsJSON string
		if err := rows.Scan(&id, &summary, &keywordsJSON); err != nil {
			return nil, fmt.Errorf("scan translation row: %w", err)
		}
		var keywords []string
		if err := json.Unmarshal([]byte(keywordsJSON), &keywords); err != nil {
			return nil, fmt.Errorf("decode keywords for %s: %w", id, err)
		}
		result[id] = models.Translation{Summary: summary, Keywords: keywords}
	}
	return result, rows.Err()
}

// Save upserts the given entries. Zero entries is a no-op.
func (s *TranslationStore) Save(ctx context.Context, entries map[string]models.Translation) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin translation save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO translation_cache (incident_id, summary, keywords, updated_at_epoch)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(incident_id) DO UPDATE SET summary = excluded.summary,
			keywords = excluded.keywords, updated_at_epoch = excluded.updated_at_epoch`)
	if err != nil {
		return fmt.Errorf("prepare translation upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for id, tr := range entries {
		keywordsJSON, err := json.Marshal(tr.Keywords)
		if err != nil {
			return fmt.Errorf("encode keywords for %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, tr.Summary, string(keywordsJSON), now); err != nil {
			return fmt.Errorf("upsert translation for %s: %w", id, err)
		}
	}
	return tx.Commit()
}
