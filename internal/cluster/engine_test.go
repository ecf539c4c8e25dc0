package cluster

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitops/patternmine/pkg/models"
)

func testConfig(minSize int, threshold float64) models.ClusteringConfig {
	cfg := models.ClusteringOptions{}.Resolve()
	cfg.MinClusterSize = minSize
	cfg.SimilarityThreshold = threshold
	return cfg
}

func signalIncident(id string, ts time.Time) *models.NormalizedIncident {
	return &models.NormalizedIncident{
		Incident: models.Incident{
			ID:        id,
			Service:   "metro",
			Category:  "mechanical",
			Priority:  3,
			Sentiment: "negative",
			Keywords:  []string{"signal", "failure", "red-line"},
		},
		ParsedTime: ts,
		Tokens:     []string{"signal", "failure", "red", "line"},
	}
}

func escalatorIncident(id string, ts time.Time) *models.NormalizedIncident {
	return &models.NormalizedIncident{
		Incident: models.Incident{
			ID:        id,
			Service:   "station",
			Category:  "facilities",
			Priority:  9,
			Sentiment: "neutral",
			Keywords:  []string{"escalator", "broken"},
		},
		ParsedTime: ts,
		Tokens:     []string{"escalator", "broken", "platform"},
	}
}

func TestClusterSimilarPairWithinWindow(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	incidents := []*models.NormalizedIncident{
		signalIncident("a", base),
		signalIncident("b", base.Add(2*time.Hour)),
	}

	engine := New(testConfig(2, 0.5), nil)
	clusters := engine.Cluster(incidents)

	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0], 2)
}

func TestClusterIdenticalContentOutsideWindow(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	incidents := []*models.NormalizedIncident{
		signalIncident("a", base),
		signalIncident("b", base.Add(48*time.Hour)),
	}

	// The time window is a hard gate even for identical content.
	engine := New(testConfig(2, 0.5), nil)
	assert.Empty(t, engine.Cluster(incidents))

	// With MinClusterSize 1 each becomes its own singleton cluster.
	engine = New(testConfig(1, 0.5), nil)
	clusters := engine.Cluster(incidents)
	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0], 1)
	assert.Len(t, clusters[1], 1)
}

func TestClusterDropsDissimilarIncident(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	var incidents []*models.NormalizedIncident
	for i := 0; i < 5; i++ {
		incidents = append(incidents, signalIncident(fmt.Sprintf("sig-%d", i), base.Add(time.Duration(i)*time.Hour)))
	}
	incidents = append(incidents, escalatorIncident("odd", base.Add(time.Hour)))

	engine := New(testConfig(2, 0.65), nil)
	clusters := engine.Cluster(incidents)

	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0], 5)
	for _, inc := range clusters[0] {
		assert.NotEqual(t, "odd", inc.ID)
	}
}

func TestClusterDissimilarSingletonWhenMinSizeOne(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	incidents := []*models.NormalizedIncident{
		signalIncident("sig-0", base),
		signalIncident("sig-1", base.Add(time.Hour)),
		escalatorIncident("odd", base.Add(time.Hour)),
	}

	engine := New(testConfig(1, 0.65), nil)
	clusters := engine.Cluster(incidents)

	require.Len(t, clusters, 2)
	total := 0
	for _, c := range clusters {
		total += len(c)
	}
	assert.Equal(t, 3, total)
}

func TestClusterEveryIncidentAtMostOnce(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	var incidents []*models.NormalizedIncident
	for i := 0; i < 8; i++ {
		incidents = append(incidents, signalIncident(fmt.Sprintf("sig-%d", i), base.Add(time.Duration(i)*time.Hour)))
	}
	for i := 0; i < 3; i++ {
		incidents = append(incidents, escalatorIncident(fmt.Sprintf("esc-%d", i), base.Add(time.Duration(i)*time.Hour)))
	}

	engine := New(testConfig(2, 0.5), nil)
	clusters := engine.Cluster(incidents)

	seen := make(map[string]bool)
	for _, c := range clusters {
		for _, inc := range c {
			assert.False(t, seen[inc.ID], "incident %s assigned twice", inc.ID)
			seen[inc.ID] = true
		}
	}
	assert.Len(t, seen, 11)
}

func TestClusterDeterministicOrder(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	build := func() []*models.NormalizedIncident {
		return []*models.NormalizedIncident{
			escalatorIncident("esc-1", base.Add(3*time.Hour)),
			signalIncident("sig-2", base.Add(time.Hour)),
			escalatorIncident("esc-0", base.Add(2*time.Hour)),
			signalIncident("sig-1", base),
		}
	}

	run := func(incidents []*models.NormalizedIncident) []string {
		engine := New(testConfig(2, 0.5), nil)
		var ids []string
		for _, c := range engine.Cluster(incidents) {
			for _, inc := range c {
				ids = append(ids, inc.ID)
			}
		}
		return ids
	}

	first := run(build())
	second := run(build())

	assert.Equal(t, first, second)
	// The earliest incident seeds the first cluster.
	require.NotEmpty(t, first)
	assert.Equal(t, "sig-1", first[0])
}

func TestClusterEmbeddingBlendPromotesPair(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	// Content-wise the pair only shares the timestamp and priority, which
	// under default weights scores 0.25, well below the 0.65 threshold.
	a := &models.NormalizedIncident{
		Incident:   models.Incident{ID: "a", Service: "metro", Category: "mechanical", Priority: 3, Sentiment: "negative", Keywords: []string{"signal"}},
		ParsedTime: base,
		Tokens:     []string{"signal", "failure"},
	}
	b := &models.NormalizedIncident{
		Incident:   models.Incident{ID: "b", Service: "bus", Category: "facilities", Priority: 3, Sentiment: "neutral", Keywords: []string{"escalator"}},
		ParsedTime: base,
		Tokens:     []string{"escalator", "broken"},
	}
	incidents := []*models.NormalizedIncident{a, b}

	engine := New(testConfig(2, 0.65), nil)
	assert.Empty(t, engine.Cluster(incidents))

	// Identical embeddings contribute 0.6 to the blended score, lifting the
	// pair over the threshold.
	embeddings := map[string][]float32{
		"a": {0.6, 0.8},
		"b": {0.6, 0.8},
	}
	engine = New(testConfig(2, 0.65), embeddings)
	clusters := engine.Cluster(incidents)

	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0], 2)
}

func TestClusterEmptyInput(t *testing.T) {
	engine := New(testConfig(2, 0.5), nil)
	assert.Nil(t, engine.Cluster(nil))
}
