package worker

import (
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/transitops/patternmine/internal/embedding"
	"github.com/transitops/patternmine/pkg/models"
)

// DefaultPatternsLimit is the default number of patterns to return.
const DefaultPatternsLimit = 100

// AnalyzeRequest is the request body of POST /api/analyze.
type AnalyzeRequest struct {
	Incidents []models.Incident        `json:"incidents"`
	Options   models.ClusteringOptions `json:"options"`
}

// AnalyzeResponse is the response body of POST /api/analyze.
type AnalyzeResponse struct {
	Patterns        []*models.Pattern `json:"patterns"`
	IncidentCount   int               `json:"incidentCount"`
	SkippedCount    int               `json:"skippedCount"`
	ClusterCount    int               `json:"clusterCount"`
	NewEmbeddings   int               `json:"newEmbeddings"`
	NewTranslations int               `json:"newTranslations"`
}

// handleAnalyze runs one pattern-mining invocation: load caches, run the
// engine, persist cache deltas and synthesized patterns, return patterns.
func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	// Incidents submitted without an ID still need a stable cache key.
	for i := range req.Incidents {
		if req.Incidents[i].ID == "" {
			req.Incidents[i].ID = uuid.NewString()
		}
	}

	opts := req.Options
	s.applyConfigDefaults(&opts)

	ids := make([]string, len(req.Incidents))
	for i, inc := range req.Incidents {
		ids[i] = inc.ID
	}

	ctx := r.Context()

	// A failed cache load degrades to an empty cache: everything recomputes.
	cachedEmbeddings, err := s.store.Embeddings().Load(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("Embedding cache load failed, recomputing")
		cachedEmbeddings = map[string][]float32{}
	}
	cachedTranslations, err := s.store.Translations().Load(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("Translation cache load failed, recomputing")
		cachedTranslations = map[string]models.Translation{}
	}
	opts.CachedEmbeddings = cachedEmbeddings
	opts.CachedTranslations = cachedTranslations

	result := s.engine.ClusterIncidents(req.Incidents, opts)

	// Persist only the delta; saves are best effort and never retried.
	newEmbeddings := make(map[string][]float32)
	for id, vec := range result.Embeddings {
		if _, ok := cachedEmbeddings[id]; !ok {
			newEmbeddings[id] = vec
		}
	}
	newTranslations := make(map[string]models.Translation)
	for id, tr := range result.Translations {
		if _, ok := cachedTranslations[id]; !ok {
			newTranslations[id] = tr
		}
	}
	if err := s.store.Embeddings().Save(ctx, newEmbeddings); err != nil {
		log.Warn().Err(err).Int("entries", len(newEmbeddings)).Msg("Embedding cache save failed")
	}
	if err := s.store.Translations().Save(ctx, newTranslations); err != nil {
		log.Warn().Err(err).Int("entries", len(newTranslations)).Msg("Translation cache save failed")
	}
	if err := s.store.Patterns().SavePatterns(ctx, result.Patterns); err != nil {
		log.Warn().Err(err).Int("patterns", len(result.Patterns)).Msg("Pattern save failed")
	}

	writeJSON(w, AnalyzeResponse{
		Patterns:        result.Patterns,
		IncidentCount:   result.IncidentCount,
		SkippedCount:    result.SkippedCount,
		ClusterCount:    result.ClusterCount,
		NewEmbeddings:   len(newEmbeddings),
		NewTranslations: len(newTranslations),
	})
}

// applyConfigDefaults fills request options left unset from the worker
// configuration, which in turn falls back to the engine defaults.
func (s *Service) applyConfigDefaults(opts *models.ClusteringOptions) {
	cfg := s.config()
	if opts.SimilarityThreshold == nil && cfg.SimilarityThreshold > 0 {
		v := cfg.SimilarityThreshold
		opts.SimilarityThreshold = &v
	}
	if opts.TimeWindowHours == nil && cfg.TimeWindowHours > 0 {
		v := cfg.TimeWindowHours
		opts.TimeWindowHours = &v
	}
	if opts.MinClusterSize == nil && cfg.MinClusterSize > 0 {
		v := cfg.MinClusterSize
		opts.MinClusterSize = &v
	}
	if opts.UseEmbeddings == nil {
		v := cfg.UseEmbeddings
		opts.UseEmbeddings = &v
	}
	if !opts.SkipTranslation && cfg.SkipTranslation {
		opts.SkipTranslation = true
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = cfg.EmbeddingModel
	}
}

// handleHealth reports liveness and basic build/runtime info.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"backend": s.config().Backend,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleGetModels lists the registered embedding models and which one the
// worker is configured to use.
func (s *Service) handleGetModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"models":     embedding.DefaultRegistry.List(),
		"configured": s.config().EmbeddingModel,
	})
}

// handleGetPatterns returns recently synthesized patterns.
func (s *Service) handleGetPatterns(w http.ResponseWriter, r *http.Request) {
	limit := DefaultPatternsLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	patterns, err := s.store.Patterns().RecentPatterns(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if patterns == nil {
		patterns = []*models.Pattern{}
	}
	writeJSON(w, patterns)
}

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
