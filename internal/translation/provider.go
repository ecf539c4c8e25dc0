package translation

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/transitops/patternmine/pkg/models"
)

// Provider lazily constructs one translation model handle on first use, the
// same pattern as the embedding provider. On model-load failure the provider
// degrades: every translation call returns the original text unchanged.
type Provider struct {
	factory ModelFactory

	once    sync.Once
	model   Model
	initErr error
}

// NewProvider creates a provider backed by the configured REST model.
func NewProvider() *Provider {
	return NewProviderWithFactory(NewRESTModel)
}

// NewProviderWithFactory creates a provider with an explicit model factory.
// Tests inject fakes through this constructor.
func NewProviderWithFactory(factory ModelFactory) *Provider {
	return &Provider{factory: factory}
}

func (p *Provider) get() (Model, error) {
	p.once.Do(func() {
		model, err := p.factory()
		if err != nil {
			p.initErr = err
			log.Warn().Err(err).Msg("Translation model unavailable, incidents will be clustered untranslated")
			return
		}
		p.model = model
		log.Info().Msg("Translation model initialized")
	})
	if p.initErr != nil {
		return nil, p.initErr
	}
	return p.model, nil
}

// TranslateToEnglish translates Spanish text to English. Non-Spanish text
// (by the heuristic) passes through without invoking the model, and any
// model failure yields the original text unchanged.
func (p *Provider) TranslateToEnglish(text string) string {
	if !IsSpanish(text) {
		return text
	}

	model, err := p.get()
	if err != nil {
		return text
	}

	translated, err := model.Translate(text, "es", "en")
	if err != nil {
		log.Warn().Err(err).Msg("Translation failed for text, keeping original")
		return text
	}
	if translated == "" {
		return text
	}
	return translated
}

// TranslateKeywords translates a keyword list by joining it with ", ",
// translating the joined string once, and re-splitting on commas. Keywords
// that legitimately contain a comma may reflow; callers tolerate that.
func (p *Provider) TranslateKeywords(keywords []string) []string {
	if len(keywords) == 0 {
		return keywords
	}

	joined := strings.Join(keywords, ", ")
	translated := p.TranslateToEnglish(joined)
	if translated == joined {
		return keywords
	}

	parts := strings.Split(translated, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return keywords
	}
	return result
}

// TranslateIncidents returns a cache holding translations for every incident
// whose summary is heuristically Spanish. Incidents already present by ID in
// the supplied cache are skipped. The supplied cache is not mutated; the
// returned map holds old and new entries. Incidents are translated one at a
// time, sequentially.
func (p *Provider) TranslateIncidents(incidents []*models.NormalizedIncident, cache map[string]models.Translation) map[string]models.Translation {
	merged := make(map[string]models.Translation, len(cache)+len(incidents))
	for id, tr := range cache {
		merged[id] = tr
	}

	translated := 0
	for _, inc := range incidents {
		if _, ok := merged[inc.ID]; ok {
			continue
		}
		if !IsSpanish(inc.Summary) {
			continue
		}
		merged[inc.ID] = models.Translation{
			Summary:  p.TranslateToEnglish(inc.Summary),
			Keywords: p.TranslateKeywords(inc.Keywords),
		}
		translated++
	}

	if translated > 0 {
		log.Debug().Int("translated", translated).Int("cached", len(cache)).Msg("Incident translations generated")
	}
	return merged
}
