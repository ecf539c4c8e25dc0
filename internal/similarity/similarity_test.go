package similarity

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/transitops/patternmine/pkg/models"
)

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []string
		expected float64
	}{
		{
			name:     "identical sets",
			a:        []string{"delay", "metro"},
			b:        []string{"metro", "delay"},
			expected: 1.0,
		},
		{
			name:     "partial overlap",
			a:        []string{"delay", "metro", "signal"},
			b:        []string{"delay", "bus"},
			expected: 0.25,
		},
		{
			name:     "case insensitive",
			a:        []string{"Delay"},
			b:        []string{"delay"},
			expected: 1.0,
		},
		{
			name:     "disjoint",
			a:        []string{"delay"},
			b:        []string{"fire"},
			expected: 0.0,
		},
		{
			name:     "both empty",
			a:        nil,
			b:        nil,
			expected: 0.0,
		},
		{
			name:     "one empty",
			a:        []string{"delay"},
			b:        nil,
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JaccardSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 0.001)
			assert.InDelta(t, got, JaccardSimilarity(tt.b, tt.a), 0.001)
		})
	}
}

func TestExactMatch(t *testing.T) {
	assert.Equal(t, 1.0, ExactMatch("Metro", "metro"))
	assert.Equal(t, 1.0, ExactMatch(" bus ", "bus"))
	assert.Equal(t, 0.0, ExactMatch("bus", "tram"))
	assert.Equal(t, 1.0, ExactMatch("", ""))
}

func TestTemporalProximity(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		other    time.Time
		window   float64
		expected float64
	}{
		{
			name:     "same instant",
			other:    base,
			window:   24,
			expected: 1.0,
		},
		{
			name:     "window edge decays to 1/e",
			other:    base.Add(24 * time.Hour),
			window:   24,
			expected: math.Exp(-1),
		},
		{
			name:     "beyond window",
			other:    base.Add(25 * time.Hour),
			window:   24,
			expected: 0.0,
		},
		{
			name:     "half window",
			other:    base.Add(12 * time.Hour),
			window:   24,
			expected: math.Exp(-0.5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, TemporalProximity(base, tt.other, tt.window), 0.0001)
			assert.InDelta(t, tt.expected, TemporalProximity(tt.other, base, tt.window), 0.0001)
		})
	}
}

func TestCosineSparse(t *testing.T) {
	a := map[string]float64{"delay": 1.0, "metro": 1.0}
	b := map[string]float64{"delay": 1.0, "bus": 1.0}

	assert.InDelta(t, 0.5, CosineSparse(a, b), 0.001)
	assert.InDelta(t, 1.0, CosineSparse(a, a), 0.001)
	assert.InDelta(t, 0.0, CosineSparse(a, map[string]float64{}), 0.001)
	assert.InDelta(t, 0.0, CosineSparse(a, map[string]float64{"fire": 2.0}), 0.001)
}

func TestCosineDense(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, CosineDense(a, a), 0.001)
	assert.InDelta(t, 0.0, CosineDense(a, b), 0.001)
	assert.InDelta(t, 0.0, CosineDense(a, []float32{0, 0, 0}), 0.001)

	assert.Panics(t, func() {
		CosineDense([]float32{1, 2}, []float32{1, 2, 3})
	})
}

func TestPrioritySimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, PrioritySimilarity(3, 3, 10), 0.001)
	assert.InDelta(t, 0.8, PrioritySimilarity(1, 3, 10), 0.001)
	assert.InDelta(t, 0.0, PrioritySimilarity(0, 10, 10), 0.001)

	// Non-positive max falls back to the default scale.
	assert.InDelta(t, 0.8, PrioritySimilarity(1, 3, 0), 0.001)
}

func TestSemanticSimilarity(t *testing.T) {
	a := &models.NormalizedIncident{Tokens: []string{"signal", "failure", "metro"}}
	b := &models.NormalizedIncident{Tokens: []string{"signal", "failure", "bus"}}
	c := &models.NormalizedIncident{Tokens: []string{"escalator", "broken"}}

	idf := map[string]float64{
		"signal": 1.0, "failure": 1.0, "metro": 1.0,
		"bus": 1.0, "escalator": 1.0, "broken": 1.0,
	}

	ab := SemanticSimilarity(a, b, idf)
	ac := SemanticSimilarity(a, c, idf)

	assert.Greater(t, ab, ac)
	assert.InDelta(t, 0.0, ac, 0.001)
	assert.InDelta(t, 1.0, SemanticSimilarity(a, a, idf), 0.001)
}

func TestSemanticSimilarityZeroIDF(t *testing.T) {
	// When every token appears in every document the IDF is ln(1)=0, so the
	// TF-IDF vectors have zero magnitude and the similarity is 0.
	a := &models.NormalizedIncident{Tokens: []string{"delay", "metro"}}
	idf := map[string]float64{"delay": 0, "metro": 0}

	assert.InDelta(t, 0.0, SemanticSimilarity(a, a, idf), 0.001)
}

func TestCompute(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	a := &models.NormalizedIncident{
		Incident: models.Incident{
			Service:   "metro",
			Category:  "mechanical",
			Priority:  3,
			Sentiment: "negative",
			Keywords:  []string{"delay", "red-line", "signal"},
		},
		ParsedTime: now,
		Tokens:     []string{"signal", "failure"},
	}
	b := &models.NormalizedIncident{
		Incident: models.Incident{
			Service:   "metro",
			Category:  "mechanical",
			Priority:  3,
			Sentiment: "negative",
			Keywords:  []string{"delay", "red-line", "door"},
		},
		ParsedTime: now,
		Tokens:     []string{"door", "failure"},
	}

	w := models.DefaultWeights()
	p := Params{TimeWindowHours: 24, MaxPriority: 10, IDF: map[string]float64{}}

	// With an empty IDF the semantic signal is 0; the remaining signals are
	// jaccard 2/4, categorical 1, temporal 1, priority 1, sentiment 1.
	expected := 0.5*w.Keyword + 1.0*w.Category + 1.0*w.Temporal + 1.0*w.Priority + 1.0*w.Sentiment
	got := Compute(a, b, w, p)

	assert.InDelta(t, expected, got, 0.001)
	assert.InDelta(t, got, Compute(b, a, w, p), 0.001)
}

func TestComputeCategoricalAveragesServiceAndCategory(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	a := &models.NormalizedIncident{
		Incident:   models.Incident{Service: "metro", Category: "mechanical"},
		ParsedTime: now,
	}
	b := &models.NormalizedIncident{
		Incident:   models.Incident{Service: "bus", Category: "mechanical"},
		ParsedTime: now,
	}

	w := models.SimilarityWeights{Category: 1.0}
	p := Params{TimeWindowHours: 24, MaxPriority: 10}

	assert.InDelta(t, 0.5, Compute(a, b, w, p), 0.001)
}

func TestBlend(t *testing.T) {
	assert.InDelta(t, 1.0, Blend(1.0, 1.0), 0.001)
	assert.InDelta(t, 0.6, Blend(1.0, 0.0), 0.001)
	assert.InDelta(t, 0.4, Blend(0.0, 1.0), 0.001)
	assert.InDelta(t, 0.6*0.8+0.4*0.5, Blend(0.8, 0.5), 0.001)
}
