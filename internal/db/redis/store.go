// Package redis provides a Redis storage backend for deployments that share
// embedding/translation caches across multiple workers.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/transitops/patternmine/internal/db"
	"github.com/transitops/patternmine/pkg/models"
)

const (
	embeddingKeyPrefix   = "patternmine:emb:"
	translationKeyPrefix = "patternmine:tr:"
	patternsKey          = "patternmine:patterns"

	// cacheTTL bounds stale cache growth; entries are recomputed on miss.
	cacheTTL = 30 * 24 * time.Hour

	// maxStoredPatterns caps the recent-patterns list.
	maxStoredPatterns = 500
)

// Store is the Redis-backed implementation of db.Store.
type Store struct {
	pool *redis.Pool

	embeddings   *EmbeddingStore
	translations *TranslationStore
	patterns     *PatternStore
}

var _ db.Store = (*Store)(nil)

// NewStore creates a store with a connection pool against the given address.
func NewStore(addr string) (*Store, error) {
	pool := &redis.Pool{
		MaxIdle:     4,
		MaxActive:   16,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	conn, err := pool.GetContext(context.Background())
	if err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	_ = conn.Close()

	store := &Store{pool: pool}
	store.embeddings = &EmbeddingStore{pool: pool}
	store.translations = &TranslationStore{pool: pool}
	store.patterns = &PatternStore{pool: pool}
	return store, nil
}

// Embeddings returns the embedding cache store.
func (s *Store) Embeddings() db.EmbeddingCacheStore { return s.embeddings }

// Translations returns the translation cache store.
func (s *Store) Translations() db.TranslationCacheStore { return s.translations }

// Patterns returns the pattern store.
func (s *Store) Patterns() db.PatternStore { return s.patterns }

// Close closes the connection pool.
func (s *Store) Close() error { return s.pool.Close() }

// EmbeddingStore persists embeddings as JSON values with TTL.
type EmbeddingStore struct {
	pool *redis.Pool
}

// Load returns cached vectors for the given IDs.
func (s *EmbeddingStore) Load(ctx context.Context, ids []string) (map[string][]float32, error) {
	result := make(map[string][]float32, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get redis connection: %w", err)
	}
	defer conn.Close()

	keys := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = embeddingKeyPrefix + id
	}
	values, err := redis.Strings(conn.Do("MGET", keys...))
	if err != nil {
		return nil, fmt.Errorf("mget embeddings: %w", err)
	}

	for i, v := range values {
		if v == "" {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(v), &vec); err != nil {
			continue // treat a corrupt entry as a miss
		}
		result[ids[i]] = vec
	}
	return result, nil
}

// Save upserts the given entries. Zero entries is a no-op.
func (s *EmbeddingStore) Save(ctx context.Context, entries map[string][]float32) error {
	if len(entries) == 0 {
		return nil
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("get redis connection: %w", err)
	}
	defer conn.Close()

	for id, vec := range entries {
		data, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("encode embedding for %s: %w", id, err)
		}
		if err := conn.Send("SET", embeddingKeyPrefix+id, data, "EX", int(cacheTTL.Seconds())); err != nil {
			return fmt.Errorf("queue embedding set for %s: %w", id, err)
		}
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("flush embedding sets: %w", err)
	}
	for range entries {
		if _, err := conn.Receive(); err != nil {
			return fmt.Errorf("save embeddings: %w", err)
		}
	}
	return nil
}

// TranslationStore persists translations as JSON values with TTL.
type TranslationStore struct {
	pool *redis.Pool
}

// Load returns cached translations for the given IDs.
func (s *TranslationStore) Load(ctx context.Context, ids []string) (map[string]models.Translation, error) {
	result := make(map[string]models.Translation, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get redis connection: %w", err)
	}
	defer conn.Close()

	keys := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = translationKeyPrefix + id
	}
	values, err := redis.Strings(conn.Do("MGET", keys...))
	if err != nil {
		return nil, fmt.Errorf("mget translations: %w", err)
	}

	for i, v := range values {
		if v == "" {
			continue
		}
		var tr models.Translation
		if err := json.Unmarshal([]byte(v), &tr); err != nil {
			continue
		}
		result[ids[i]] = tr
	}
	return result, nil
}

// Save upserts the given entries. Zero entries is a no-op.
func (s *TranslationStore) Save(ctx context.Context, entries map[string]models.Translation) error {
	if len(entries) == 0 {
		return nil
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("get redis connection: %w", err)
	}
	defer conn.Close()

	for id, tr := range entries {
		data, err := json.Marshal(tr)
		if err != nil {
			return fmt.Errorf("encode translation for %s: %w", id, err)
		}
		if err := conn.Send("SET", translationKeyPrefix+id, data, "EX", int(cacheTTL.Seconds())); err != nil {
			return fmt.Errorf("queue translation set for %s: %w", id, err)
		}
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("flush translation sets: %w", err)
	}
	for range entries {
		if _, err := conn.Receive(); err != nil {
			return fmt.Errorf("save translations: %w", err)
		}
	}
	return nil
}

// PatternStore keeps recent patterns in a capped list, newest first.
type PatternStore struct {
	pool *redis.Pool
}

// SavePatterns prepends the patterns to the recent list. Zero is a no-op.
func (s *PatternStore) SavePatterns(ctx context.Context, patterns []*models.Pattern) error {
	if len(patterns) == 0 {
		return nil
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("get redis connection: %w", err)
	}
	defer conn.Close()

	args := []interface{}{patternsKey}
	for _, p := range patterns {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode pattern %s: %w", p.ID, err)
		}
		args = append(args, data)
	}

	if _, err := conn.Do("LPUSH", args...); err != nil {
		return fmt.Errorf("push patterns: %w", err)
	}
	if _, err := conn.Do("LTRIM", patternsKey, 0, maxStoredPatterns-1); err != nil {
		return fmt.Errorf("trim patterns: %w", err)
	}
	return nil
}

// RecentPatterns returns the most recently stored patterns, newest first.
func (s *PatternStore) RecentPatterns(ctx context.Context, limit int) ([]*models.Pattern, error) {
	if limit <= 0 {
		limit = 100
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get redis connection: %w", err)
	}
	defer conn.Close()

	values, err := redis.Strings(conn.Do("LRANGE", patternsKey, 0, limit-1))
	if err != nil {
		return nil, fmt.Errorf("range patterns: %w", err)
	}

	patterns := make([]*models.Pattern, 0, len(values))
	for _, v := range values {
		var p models.Pattern
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			continue
		}
		patterns = append(patterns, &p)
	}
	return patterns, nil
}
