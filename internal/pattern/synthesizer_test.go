package pattern

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitops/patternmine/pkg/models"
)

func member(id string, ts time.Time, service, category, source string, priority int, sentiment string, keywords ...string) *models.NormalizedIncident {
	return &models.NormalizedIncident{
		Incident: models.Incident{
			ID:        id,
			Service:   service,
			Category:  category,
			Source:    source,
			Priority:  priority,
			Sentiment: sentiment,
			Keywords:  keywords,
		},
		ParsedTime: ts,
	}
}

func TestSynthesize(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	cluster := []*models.NormalizedIncident{
		member("a", base, "metro", "mechanical", "twitter", 2, "negative", "signal", "delay"),
		member("b", base.Add(time.Hour), "metro", "mechanical", "app", 3, "neutral", "signal"),
		member("c", base.Add(2*time.Hour), "metro", "mechanical", "twitter", 2, "negative", "delay"),
	}

	p := Synthesize(cluster, models.ClusteringOptions{}.Resolve())

	require.NotNil(t, p)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 3, p.Frequency)
	assert.Equal(t, []string{"a", "b", "c"}, p.IncidentIDs)
	assert.Equal(t, base, p.TimeRangeStart)
	assert.Equal(t, base.Add(2*time.Hour), p.TimeRangeEnd)
	assert.Contains(t, p.Title, "metro mechanical issues")
	assert.NotEmpty(t, p.Description)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestSynthesizeEmptyClusterPanics(t *testing.T) {
	assert.Panics(t, func() {
		Synthesize(nil, models.ClusteringOptions{}.Resolve())
	})
}

func TestTopKeywords(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	cluster := []*models.NormalizedIncident{
		member("a", base, "metro", "mechanical", "app", 2, "", "Signal", "delay"),
		member("b", base, "metro", "mechanical", "app", 2, "", "signal", "door"),
		member("c", base, "metro", "mechanical", "app", 2, "", "delay"),
	}

	// "signal" and "delay" both appear twice; the tie breaks alphabetically.
	got := topKeywords(cluster, 2)
	assert.Equal(t, []string{"delay", "signal"}, got)

	all := topKeywords(cluster, 0)
	assert.Equal(t, []string{"delay", "signal", "door"}, all)
}

func TestBuildTitleMarkers(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		cluster  []*models.NormalizedIncident
		contains string
	}{
		{
			name: "critical marker",
			cluster: []*models.NormalizedIncident{
				member("a", base, "metro", "mechanical", "app", 5, ""),
				member("b", base, "metro", "mechanical", "app", 4, ""),
			},
			contains: "Critical metro mechanical issues",
		},
		{
			name: "high priority marker",
			cluster: []*models.NormalizedIncident{
				member("a", base, "metro", "mechanical", "app", 3, ""),
				member("b", base, "metro", "mechanical", "app", 3, ""),
			},
			contains: "High priority metro mechanical issues",
		},
		{
			name: "multi service base",
			cluster: []*models.NormalizedIncident{
				member("a", base, "metro", "mechanical", "app", 1, ""),
				member("b", base, "bus", "mechanical", "app", 1, ""),
			},
			contains: "mechanical issues across 2 services",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title := buildTitle(tt.cluster, nil)
			assert.Contains(t, title, tt.contains)
		})
	}
}

func TestBuildTitleFrequentAndLarge(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	var cluster []*models.NormalizedIncident
	for i := 0; i < 20; i++ {
		cluster = append(cluster, member(fmt.Sprintf("i%d", i), base, "metro", "mechanical", "app", 1, ""))
	}

	title := buildTitle(cluster, []string{"signal"})
	assert.True(t, strings.HasPrefix(title, "Frequent metro mechanical issues"), title)
	assert.Contains(t, title, "involving signal")
	assert.Contains(t, title, "(20+ incidents)")
}

func TestKeywordClause(t *testing.T) {
	assert.Equal(t, "", keywordClause(nil))
	assert.Equal(t, " involving signal", keywordClause([]string{"signal"}))
	assert.Equal(t, " involving signal and delay", keywordClause([]string{"signal", "delay"}))
	assert.Equal(t, " involving signal, delay, and door",
		keywordClause([]string{"signal", "delay", "door", "extra"}))
}

func TestBuildDescription(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	cluster := []*models.NormalizedIncident{
		member("a", base, "metro", "mechanical", "twitter", 4, "negative"),
		member("b", base.Add(time.Hour), "bus", "mechanical", "app", 4, "negative"),
	}

	desc := buildDescription(cluster, base, base.Add(time.Hour))

	assert.Contains(t, desc, "Detected 2 incidents on March 14, 2026")
	assert.Contains(t, desc, "affecting 2 services")
	assert.Contains(t, desc, "Average priority is 4.0 out of 5.")
	assert.Contains(t, desc, "2 incidents are critical.")
	assert.Contains(t, desc, "100% of incidents carry negative sentiment")
	assert.Contains(t, desc, "2 channels")
	assert.Contains(t, desc, "this pattern requires immediate attention")
	assert.Contains(t, desc, "a cross-service investigation is advised")
	assert.Contains(t, desc, "proactive rider communication is advised")
}

func TestBuildDescriptionChronicSpan(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	cluster := []*models.NormalizedIncident{
		member("a", base, "metro", "mechanical", "app", 1, "neutral"),
		member("b", base.Add(9*24*time.Hour), "metro", "mechanical", "app", 1, "neutral"),
	}

	desc := buildDescription(cluster, base, base.Add(9*24*time.Hour))

	assert.Contains(t, desc, "over 9 days")
	assert.Contains(t, desc, "the long time span suggests a chronic issue")
	assert.NotContains(t, desc, "immediate attention")
}

func TestBuildFilters(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	cluster := []*models.NormalizedIncident{
		member("a", base.Add(time.Hour), "metro", "mechanical", "twitter", 2, "negative", "Signal", "delay"),
		member("b", base, "bus", "mechanical", "app", 5, "neutral", "signal", "door"),
	}

	f := BuildFilters(cluster)

	assert.Equal(t, []string{"metro", "bus"}, f.Services)
	assert.Equal(t, []string{"mechanical"}, f.Categories)
	assert.Equal(t, []string{"twitter", "app"}, f.Sources)
	assert.Equal(t, []string{"signal", "delay", "door"}, f.Keywords)
	assert.Equal(t, 2, f.PriorityRange.Min)
	assert.Equal(t, 5, f.PriorityRange.Max)
	assert.Equal(t, []string{"negative", "neutral"}, f.Sentiments)
	assert.Equal(t, base, f.TimeRangeStart)
	assert.Equal(t, base.Add(time.Hour), f.TimeRangeEnd)
}

func TestBuildFiltersKeywordCap(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	var keywords []string
	for i := 0; i < models.MaxFilterKeywords+5; i++ {
		keywords = append(keywords, fmt.Sprintf("kw-%02d", i))
	}
	cluster := []*models.NormalizedIncident{
		member("a", base, "metro", "mechanical", "app", 1, "", keywords...),
	}

	f := BuildFilters(cluster)
	assert.Len(t, f.Keywords, models.MaxFilterKeywords)
}

func TestComputeWeightedPriority(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	t.Run("uniform priority is order independent", func(t *testing.T) {
		cluster := []*models.NormalizedIncident{
			member("a", base.Add(2*time.Hour), "m", "c", "s", 3, ""),
			member("b", base, "m", "c", "s", 3, ""),
			member("c", base.Add(time.Hour), "m", "c", "s", 3, ""),
		}
		assert.Equal(t, 3, ComputeWeightedPriority(cluster))
	})

	t.Run("recent incidents dominate", func(t *testing.T) {
		// The most recent incident has priority 5, the two older ones 1.
		cluster := []*models.NormalizedIncident{
			member("old-1", base, "m", "c", "s", 1, ""),
			member("old-2", base.Add(time.Hour), "m", "c", "s", 1, ""),
			member("new", base.Add(10*time.Hour), "m", "c", "s", 5, ""),
		}
		got := ComputeWeightedPriority(cluster)
		assert.Greater(t, got, 1)
		assert.LessOrEqual(t, got, 5)
	})

	t.Run("single member", func(t *testing.T) {
		cluster := []*models.NormalizedIncident{member("a", base, "m", "c", "s", 4, "")}
		assert.Equal(t, 4, ComputeWeightedPriority(cluster))
	})

	t.Run("empty cluster panics", func(t *testing.T) {
		assert.Panics(t, func() { ComputeWeightedPriority(nil) })
	})
}

func TestIsNegativeSentiment(t *testing.T) {
	assert.True(t, isNegativeSentiment("negative"))
	assert.True(t, isNegativeSentiment("Very Negative"))
	assert.True(t, isNegativeSentiment("frustrated"))
	assert.True(t, isNegativeSentiment("enojo"))
	assert.False(t, isNegativeSentiment("neutral"))
	assert.False(t, isNegativeSentiment(""))
}
