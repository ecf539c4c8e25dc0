// Package pattern turns incident clusters into human-readable patterns:
// title, narrative description, aggregated filters and a weighted priority.
package pattern

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/transitops/patternmine/pkg/models"
)

// Severity and size thresholds used by the title and description grammar.
const (
	criticalPriority     = 4
	highPriority         = 3
	frequentClusterSize  = 10
	largeClusterSize     = 20
	acuteMinIncidents    = 5
	chronicMinSpanDays   = 7
	negativeSentimentCut = 0.5
	criticalShareCut     = 0.5
)

// negativeMarkers identify negative sentiment labels by substring.
var negativeMarkers = []string{"negat", "angry", "frustrat", "enojo", "molest"}

// Synthesize builds a Pattern from one non-empty cluster. Passing an empty
// cluster is a programmer error and panics.
func Synthesize(cluster []*models.NormalizedIncident, cfg models.ClusteringConfig) *models.Pattern {
	if len(cluster) == 0 {
		panic("pattern: cannot synthesize from an empty cluster")
	}

	start, end := timeRange(cluster)
	keywords := topKeywords(cluster, cfg.MaxKeywordsInTitle)

	ids := make([]string, len(cluster))
	for i, inc := range cluster {
		ids[i] = inc.ID
	}

	return &models.Pattern{
		ID:             uuid.NewString(),
		Title:          buildTitle(cluster, keywords),
		Description:    buildDescription(cluster, start, end),
		Filters:        BuildFilters(cluster),
		Priority:       ComputeWeightedPriority(cluster),
		Frequency:      len(cluster),
		TimeRangeStart: start,
		TimeRangeEnd:   end,
		IncidentIDs:    ids,
		CreatedAt:      time.Now().UTC(),
	}
}

// topKeywords counts keyword frequency across the cluster (case-insensitive)
// and returns the most frequent ones, ties broken alphabetically.
func topKeywords(cluster []*models.NormalizedIncident, limit int) []string {
	counts := make(map[string]int)
	for _, inc := range cluster {
		for _, kw := range inc.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				counts[kw]++
			}
		}
	}

	keywords := make([]string, 0, len(counts))
	for kw := range counts {
		keywords = append(keywords, kw)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

// buildTitle composes the pattern title: an optional severity marker, a base
// phrase naming the dominant service/category, a keyword clause, and a count
// suffix for large clusters.
func buildTitle(cluster []*models.NormalizedIncident, keywords []string) string {
	services := distinctCount(cluster, func(i *models.NormalizedIncident) string { return i.Service })
	topService := mostFrequent(cluster, func(i *models.NormalizedIncident) string { return i.Service })
	topCategory := mostFrequent(cluster, func(i *models.NormalizedIncident) string { return i.Category })

	var avgPriority float64
	for _, inc := range cluster {
		avgPriority += float64(inc.Priority)
	}
	avgPriority /= float64(len(cluster))

	// Critical outranks the size-based marker, high-priority outranks it too.
	marker := ""
	switch {
	case avgPriority >= criticalPriority:
		marker = "Critical "
	case avgPriority >= highPriority:
		marker = "High priority "
	case len(cluster) >= frequentClusterSize:
		marker = "Frequent "
	}

	var base string
	if services > 1 {
		base = fmt.Sprintf("%s issues across %d services", topCategory, services)
	} else {
		base = fmt.Sprintf("%s %s issues", topService, topCategory)
	}

	title := marker + base + keywordClause(keywords)
	if len(cluster) >= largeClusterSize {
		title += fmt.Sprintf(" (%d+ incidents)", len(cluster))
	}
	return title
}

// keywordClause renders the top 1-3 keywords as a natural-language clause.
func keywordClause(keywords []string) string {
	switch {
	case len(keywords) == 0:
		return ""
	case len(keywords) == 1:
		return fmt.Sprintf(" involving %s", keywords[0])
	case len(keywords) == 2:
		return fmt.Sprintf(" involving %s and %s", keywords[0], keywords[1])
	default:
		return fmt.Sprintf(" involving %s, %s, and %s", keywords[0], keywords[1], keywords[2])
	}
}

// buildDescription composes the three-part narrative: scope, severity/
// sentiment profile, and conditional recommendations.
func buildDescription(cluster []*models.NormalizedIncident, start, end time.Time) string {
	services := distinctCount(cluster, func(i *models.NormalizedIncident) string { return i.Service })
	categories := distinctCount(cluster, func(i *models.NormalizedIncident) string { return i.Category })
	sources := distinctCount(cluster, func(i *models.NormalizedIncident) string { return i.Source })

	spanDays := int(end.Sub(start).Hours() / 24)

	var span string
	switch {
	case start.Format("2006-01-02") == end.Format("2006-01-02"):
		span = fmt.Sprintf("on %s", start.Format("January 2, 2006"))
	case spanDays <= 1:
		span = fmt.Sprintf("between %s and %s", start.Format("January 2"), end.Format("January 2, 2006"))
	default:
		span = fmt.Sprintf("over %d days (%s to %s)", spanDays, start.Format("January 2"), end.Format("January 2, 2006"))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Detected %d incidents %s, affecting %d %s across %d %s.",
		len(cluster), span,
		services, plural(services, "service", "services"),
		categories, plural(categories, "category", "categories"))

	var prioritySum float64
	criticalCount := 0
	negativeCount := 0
	for _, inc := range cluster {
		prioritySum += float64(inc.Priority)
		if inc.Priority >= criticalPriority {
			criticalCount++
		}
		if isNegativeSentiment(inc.Sentiment) {
			negativeCount++
		}
	}
	avgPriority := prioritySum / float64(len(cluster))
	negativeRate := float64(negativeCount) / float64(len(cluster))
	criticalRate := float64(criticalCount) / float64(len(cluster))

	fmt.Fprintf(&b, " Average priority is %.1f out of 5.", avgPriority)
	if criticalCount > 0 {
		fmt.Fprintf(&b, " %d %s critical.", criticalCount, plural(criticalCount, "incident is", "incidents are"))
	}
	fmt.Fprintf(&b, " %.0f%% of incidents carry negative sentiment. Reports arrived through %d %s.",
		negativeRate*100, sources, plural(sources, "channel", "channels"))

	var recs []string
	if criticalRate >= criticalShareCut {
		recs = append(recs, "this pattern requires immediate attention")
	}
	if spanDays <= 1 && len(cluster) >= acuteMinIncidents {
		recs = append(recs, "the short time span suggests an acute issue")
	}
	if spanDays >= chronicMinSpanDays {
		recs = append(recs, "the long time span suggests a chronic issue")
	}
	if services > 1 {
		recs = append(recs, "a cross-service investigation is advised")
	}
	if negativeRate >= negativeSentimentCut {
		recs = append(recs, "proactive rider communication is advised")
	}
	if len(recs) > 0 {
		fmt.Fprintf(&b, " Recommendation: %s.", strings.Join(recs, "; "))
	}

	return b.String()
}

// BuildFilters aggregates the cluster into a structured filter set.
func BuildFilters(cluster []*models.NormalizedIncident) models.PatternFilters {
	start, end := timeRange(cluster)

	minPriority, maxPriority := cluster[0].Priority, cluster[0].Priority
	keywordSeen := make(map[string]bool)
	var keywords []string
	for _, inc := range cluster {
		if inc.Priority < minPriority {
			minPriority = inc.Priority
		}
		if inc.Priority > maxPriority {
			maxPriority = inc.Priority
		}
		for _, kw := range inc.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" || keywordSeen[kw] {
				continue
			}
			if len(keywords) >= models.MaxFilterKeywords {
				continue
			}
			keywordSeen[kw] = true
			keywords = append(keywords, kw)
		}
	}

	return models.PatternFilters{
		Services:   distinctValues(cluster, func(i *models.NormalizedIncident) string { return i.Service }),
		Categories: distinctValues(cluster, func(i *models.NormalizedIncident) string { return i.Category }),
		Sources:    distinctValues(cluster, func(i *models.NormalizedIncident) string { return i.Source }),
		Keywords:   keywords,
		PriorityRange: models.PriorityRange{
			Min: minPriority,
			Max: maxPriority,
		},
		Sentiments:     distinctValues(cluster, func(i *models.NormalizedIncident) string { return i.Sentiment }),
		TimeRangeStart: start,
		TimeRangeEnd:   end,
	}
}

// ComputeWeightedPriority returns the recency-weighted average priority:
// members sorted by time descending, the i-th (0-indexed) member weighted by
// exp(-i / clusterSize), rounded to the nearest integer. Recent incidents
// dominate the score.
func ComputeWeightedPriority(cluster []*models.NormalizedIncident) int {
	if len(cluster) == 0 {
		panic("pattern: cannot compute priority of an empty cluster")
	}

	sorted := make([]*models.NormalizedIncident, len(cluster))
	copy(sorted, cluster)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ParsedTime.After(sorted[j].ParsedTime)
	})

	n := float64(len(sorted))
	var weightedSum, weightSum float64
	for i, inc := range sorted {
		w := math.Exp(-float64(i) / n)
		weightedSum += float64(inc.Priority) * w
		weightSum += w
	}
	return int(math.Round(weightedSum / weightSum))
}

// timeRange returns the min and max incident timestamps, in UTC.
func timeRange(cluster []*models.NormalizedIncident) (time.Time, time.Time) {
	start, end := cluster[0].ParsedTime, cluster[0].ParsedTime
	for _, inc := range cluster[1:] {
		if inc.ParsedTime.Before(start) {
			start = inc.ParsedTime
		}
		if inc.ParsedTime.After(end) {
			end = inc.ParsedTime
		}
	}
	return start.UTC(), end.UTC()
}

func isNegativeSentiment(label string) bool {
	label = strings.ToLower(label)
	for _, marker := range negativeMarkers {
		if strings.Contains(label, marker) {
			return true
		}
	}
	return false
}

// mostFrequent returns the most common value of the field across the
// cluster, ties broken alphabetically for determinism.
func mostFrequent(cluster []*models.NormalizedIncident, field func(*models.NormalizedIncident) string) string {
	counts := make(map[string]int)
	for _, inc := range cluster {
		counts[field(inc)]++
	}
	best := ""
	bestCount := -1
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}

func distinctCount(cluster []*models.NormalizedIncident, field func(*models.NormalizedIncident) string) int {
	return len(distinctValues(cluster, field))
}

// distinctValues returns the distinct non-empty values of a field, in first-
// seen order.
func distinctValues(cluster []*models.NormalizedIncident, field func(*models.NormalizedIncident) string) []string {
	seen := make(map[string]bool)
	var values []string
	for _, inc := range cluster {
		v := field(inc)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values
}

func plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
