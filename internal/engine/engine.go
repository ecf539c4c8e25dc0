// Package engine is the single entry point of the pattern-mining core: it
// wires preprocessing, translation, embeddings, clustering and pattern
// synthesis together per invocation.
package engine

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/transitops/patternmine/internal/cluster"
	"github.com/transitops/patternmine/internal/embedding"
	"github.com/transitops/patternmine/internal/pattern"
	"github.com/transitops/patternmine/internal/textproc"
	"github.com/transitops/patternmine/internal/translation"
	"github.com/transitops/patternmine/pkg/models"
)

// Engine orchestrates one clustering invocation. It owns no persistent
// state: caches flow in through options and out through Result, and the
// caller decides what to persist.
type Engine struct {
	embeddings *embedding.Provider
	translator *translation.Provider
}

// Result is the output of one invocation: the synthesized patterns plus the
// merged caches (old and new entries) for the caller to persist.
type Result struct {
	Patterns     []*models.Pattern             `json:"patterns"`
	Embeddings   map[string][]float32          `json:"-"`
	Translations map[string]models.Translation `json:"-"`

	IncidentCount int `json:"incidentCount"`
	SkippedCount  int `json:"skippedCount"`
	ClusterCount  int `json:"clusterCount"`
}

// New creates an engine with the given providers. Either provider may be a
// degraded one; the engine only ever observes their graceful fallbacks.
func New(embeddings *embedding.Provider, translator *translation.Provider) *Engine {
	return &Engine{embeddings: embeddings, translator: translator}
}

// ClusterIncidents mines patterns out of one incident batch. An empty input
// returns an empty result without touching the providers. Incidents with
// unparsable timestamps are skipped with a warning.
func (e *Engine) ClusterIncidents(incidents []models.Incident, opts models.ClusteringOptions) *Result {
	result := &Result{
		Patterns:     []*models.Pattern{},
		Embeddings:   opts.CachedEmbeddings,
		Translations: opts.CachedTranslations,
	}
	if len(incidents) == 0 {
		return result
	}

	started := time.Now()
	cfg := opts.Resolve()

	normalized := make([]*models.NormalizedIncident, 0, len(incidents))
	for _, inc := range incidents {
		norm, err := textproc.PreprocessIncident(inc)
		if err != nil {
			log.Warn().Err(err).Str("incident_id", inc.ID).Msg("Skipping incident with unparsable timestamp")
			result.SkippedCount++
			continue
		}
		normalized = append(normalized, norm)
	}
	result.IncidentCount = len(normalized)
	if len(normalized) == 0 {
		return result
	}

	if !cfg.SkipTranslation {
		result.Translations = e.translator.TranslateIncidents(normalized, opts.CachedTranslations)
		applyTranslations(normalized, result.Translations)
	}

	// Cached vectors still flow through Result for the caller to keep, but
	// only a run with embeddings enabled feeds them into the similarity blend.
	var clusterEmbeddings map[string][]float32
	if cfg.UseEmbeddings {
		result.Embeddings = e.embeddings.GenerateIncidentEmbeddings(normalized, opts.CachedEmbeddings)
		clusterEmbeddings = result.Embeddings
	}

	clusters := cluster.New(cfg, clusterEmbeddings).Cluster(normalized)
	result.ClusterCount = len(clusters)

	for _, c := range clusters {
		result.Patterns = append(result.Patterns, pattern.Synthesize(c, cfg))
	}

	// Highest priority first, ties broken by frequency.
	sort.SliceStable(result.Patterns, func(i, j int) bool {
		a, b := result.Patterns[i], result.Patterns[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Frequency > b.Frequency
	})

	log.Info().
		Int("incidents", result.IncidentCount).
		Int("skipped", result.SkippedCount).
		Int("clusters", result.ClusterCount).
		Int("patterns", len(result.Patterns)).
		Dur("duration", time.Since(started)).
		Msg("Pattern mining run completed")

	return result
}

// applyTranslations overwrites the summary, keywords and re-derived tokens
// of every translated incident, strictly before similarity computation.
// Translation happens at most once per incident per run.
func applyTranslations(incidents []*models.NormalizedIncident, translations map[string]models.Translation) {
	for _, inc := range incidents {
		tr, ok := translations[inc.ID]
		if !ok {
			continue
		}
		if tr.Summary != "" {
			inc.Summary = tr.Summary
			inc.NormalizedSummary = textproc.NormalizeText(tr.Summary)
			inc.Tokens = textproc.Tokenize(tr.Summary)
		}
		if len(tr.Keywords) > 0 {
			inc.Keywords = tr.Keywords
		}
	}
}
