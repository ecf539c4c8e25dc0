// Package db defines the storage contracts for cached embeddings, cached
// translations and synthesized patterns. The engine never talks to storage
// directly; the worker loads caches before a run and persists the deltas
// afterwards.
package db

import (
	"context"

	"github.com/transitops/patternmine/pkg/models"
)

// EmbeddingCacheStore persists incident-ID-keyed embedding vectors.
type EmbeddingCacheStore interface {
	// Load returns the cached vectors for the given incident IDs. Missing
	// IDs are simply absent from the result.
	Load(ctx context.Context, ids []string) (map[string][]float32, error)

	// Save upserts the given entries. A call with zero entries is a no-op.
	Save(ctx context.Context, entries map[string][]float32) error
}

// TranslationCacheStore persists incident-ID-keyed translations.
type TranslationCacheStore interface {
	Load(ctx context.Context, ids []string) (map[string]models.Translation, error)
	Save(ctx context.Context, entries map[string]models.Translation) error
}

// PatternStore persists synthesized patterns.
type PatternStore interface {
	SavePatterns(ctx context.Context, patterns []*models.Pattern) error
	RecentPatterns(ctx context.Context, limit int) ([]*models.Pattern, error)
}

// Store bundles the three stores of one backend.
type Store interface {
	Embeddings() EmbeddingCacheStore
	Translations() TranslationCacheStore
	Patterns() PatternStore
	Close() error
}
