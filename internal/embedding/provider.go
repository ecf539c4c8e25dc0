package embedding

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/transitops/patternmine/pkg/models"
)

// Provider lazily constructs one model handle on first use and reuses it for
// the rest of the process. Construction failure is logged once, after which
// the provider reports unavailable and every embedding call degrades to nil.
type Provider struct {
	factory ModelFactory

	once    sync.Once
	model   Model
	initErr error
}

// NewProvider creates a provider backed by the registered model with the
// given version. An empty version selects the default model.
func NewProvider(version string) *Provider {
	return NewProviderWithFactory(func() (Model, error) {
		return GetModel(version)
	})
}

// NewProviderWithFactory creates a provider with an explicit model factory.
// Tests inject fakes through this constructor.
func NewProviderWithFactory(factory ModelFactory) *Provider {
	return &Provider{factory: factory}
}

// get initializes the model handle once.
func (p *Provider) get() (Model, error) {
	p.once.Do(func() {
		model, err := p.factory()
		if err != nil {
			p.initErr = err
			log.Warn().Err(err).Msg("Embedding model unavailable, similarity will not use embeddings")
			return
		}
		p.model = model
		log.Info().Str("model", model.Name()).Int("dimensions", model.Dimensions()).Msg("Embedding model initialized")
	})
	if p.initErr != nil {
		return nil, p.initErr
	}
	return p.model, nil
}

// GenerateEmbedding returns the mean-pooled, L2-normalized vector for the
// text, or nil when the model is unavailable or inference fails for this one
// text. A nil result never aborts the batch.
func (p *Provider) GenerateEmbedding(text string) []float32 {
	model, err := p.get()
	if err != nil {
		return nil
	}

	vec, err := model.Embed(text)
	if err != nil {
		log.Warn().Err(err).Msg("Embedding generation failed for text, skipping")
		return nil
	}
	return l2Normalize(vec)
}

// GenerateIncidentEmbeddings fills the cache with one embedding per incident.
// Incidents already present by ID are skipped without touching the model.
// The supplied cache is not mutated; the returned map holds old and new
// entries. Incidents are embedded one at a time, sequentially, to bound
// concurrent model invocations.
func (p *Provider) GenerateIncidentEmbeddings(incidents []*models.NormalizedIncident, cache map[string][]float32) map[string][]float32 {
	merged := make(map[string][]float32, len(cache)+len(incidents))
	for id, vec := range cache {
		merged[id] = vec
	}

	generated := 0
	for _, inc := range incidents {
		if _, ok := merged[inc.ID]; ok {
			continue
		}
		vec := p.GenerateEmbedding(IncidentText(inc))
		if vec == nil {
			continue
		}
		merged[inc.ID] = vec
		generated++
	}

	if generated > 0 {
		log.Debug().Int("generated", generated).Int("cached", len(cache)).Msg("Incident embeddings generated")
	}
	return merged
}

// IncidentText builds the structured text that gets embedded for an incident.
func IncidentText(inc *models.NormalizedIncident) string {
	return fmt.Sprintf("service: %s | category: %s | priority: %d | %s",
		inc.Service, inc.Category, inc.Priority, inc.Summary)
}

// l2Normalize scales the vector to unit length. Zero vectors pass through.
func l2Normalize(vec []float32) []float32 {
	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if mag == 0 {
		return vec
	}
	norm := float32(math.Sqrt(mag))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
