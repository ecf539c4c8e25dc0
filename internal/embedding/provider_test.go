package embedding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitops/patternmine/pkg/models"
)

// fakeModel counts Embed calls and returns a fixed vector.
type fakeModel struct {
	embedCalls int
	vec        []float32
	embedErr   error
}

func (m *fakeModel) Name() string    { return "fake" }
func (m *fakeModel) Version() string { return "fake-v1" }
func (m *fakeModel) Dimensions() int { return len(m.vec) }
func (m *fakeModel) Close() error    { return nil }

func (m *fakeModel) Embed(text string) ([]float32, error) {
	m.embedCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vec, nil
}

func normIncident(id, summary string) *models.NormalizedIncident {
	return &models.NormalizedIncident{
		Incident: models.Incident{ID: id, Service: "metro", Category: "mechanical", Priority: 3, Summary: summary},
	}
}

func TestGenerateEmbeddingNormalizes(t *testing.T) {
	model := &fakeModel{vec: []float32{3, 4}}
	p := NewProviderWithFactory(func() (Model, error) { return model, nil })

	vec := p.GenerateEmbedding("signal failure")

	require.Len(t, vec, 2)
	assert.InDelta(t, 0.6, vec[0], 0.0001)
	assert.InDelta(t, 0.8, vec[1], 0.0001)
}

func TestGenerateEmbeddingUnavailableModel(t *testing.T) {
	factoryCalls := 0
	p := NewProviderWithFactory(func() (Model, error) {
		factoryCalls++
		return nil, errors.New("model file missing")
	})

	assert.Nil(t, p.GenerateEmbedding("signal failure"))
	assert.Nil(t, p.GenerateEmbedding("door stuck"))

	// Construction is attempted exactly once.
	assert.Equal(t, 1, factoryCalls)
}

func TestGenerateEmbeddingInferenceFailure(t *testing.T) {
	model := &fakeModel{vec: []float32{1, 0}, embedErr: errors.New("inference failed")}
	p := NewProviderWithFactory(func() (Model, error) { return model, nil })

	assert.Nil(t, p.GenerateEmbedding("signal failure"))
	assert.Equal(t, 1, model.embedCalls)
}

func TestGenerateIncidentEmbeddingsSkipsCached(t *testing.T) {
	model := &fakeModel{vec: []float32{1, 0}}
	p := NewProviderWithFactory(func() (Model, error) { return model, nil })

	cache := map[string][]float32{
		"cached": {0, 1},
	}
	incidents := []*models.NormalizedIncident{
		normIncident("cached", "already embedded"),
		normIncident("fresh", "needs embedding"),
	}

	merged := p.GenerateIncidentEmbeddings(incidents, cache)

	// Only the uncached incident touched the model.
	assert.Equal(t, 1, model.embedCalls)
	require.Len(t, merged, 2)
	assert.Equal(t, []float32{0, 1}, merged["cached"])
	assert.NotNil(t, merged["fresh"])

	// The supplied cache is never mutated.
	assert.Len(t, cache, 1)
	assert.NotContains(t, cache, "fresh")
}

func TestGenerateIncidentEmbeddingsAllCached(t *testing.T) {
	factoryCalls := 0
	p := NewProviderWithFactory(func() (Model, error) {
		factoryCalls++
		return &fakeModel{vec: []float32{1, 0}}, nil
	})

	cache := map[string][]float32{"a": {1, 0}, "b": {0, 1}}
	incidents := []*models.NormalizedIncident{
		normIncident("a", "one"),
		normIncident("b", "two"),
	}

	merged := p.GenerateIncidentEmbeddings(incidents, cache)

	assert.Len(t, merged, 2)
	// Fully cached batches never initialize the model.
	assert.Equal(t, 0, factoryCalls)
}

func TestGenerateIncidentEmbeddingsUnavailableDegrades(t *testing.T) {
	p := NewProviderWithFactory(func() (Model, error) {
		return nil, errors.New("no model")
	})

	incidents := []*models.NormalizedIncident{normIncident("a", "one")}
	merged := p.GenerateIncidentEmbeddings(incidents, nil)

	assert.Empty(t, merged)
}

func TestIncidentText(t *testing.T) {
	inc := normIncident("a", "Red line stopped")
	assert.Equal(t, "service: metro | category: mechanical | priority: 3 | Red line stopped", IncidentText(inc))
}

func TestL2Normalize(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, l2Normalize([]float32{0, 0}))

	vec := l2Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, vec[0], 0.0001)
	assert.InDelta(t, 0.8, vec[1], 0.0001)
}

func TestModelRegistry(t *testing.T) {
	reg := NewModelRegistry()
	reg.Register(ModelMetadata{Name: "Fake", Version: "fake-v1", Dimensions: 2, Default: true},
		func() (Model, error) { return &fakeModel{vec: []float32{1, 0}}, nil })

	m, err := reg.Get("fake-v1")
	require.NoError(t, err)
	assert.Equal(t, "fake", m.Name())

	// Empty version resolves to the default.
	m, err = reg.Get("")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Dimensions())

	_, err = reg.Get("missing")
	assert.Error(t, err)

	assert.Len(t, reg.List(), 1)
}
