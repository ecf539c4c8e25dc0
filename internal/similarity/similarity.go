// Package similarity computes the multi-signal similarity score between two
// incidents. All functions return values in [0,1].
package similarity

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/transitops/patternmine/internal/textproc"
	"github.com/transitops/patternmine/pkg/models"
)

// Blend weights for combining embedding cosine similarity with the
// traditional multi-signal score.
const (
	EmbeddingBlendWeight   = 0.6
	TraditionalBlendWeight = 0.4
)

// Params carries the batch-level inputs needed by Compute.
type Params struct {
	TimeWindowHours float64
	IDF             map[string]float64
	MaxPriority     int
}

// JaccardSimilarity is the case-insensitive set Jaccard index of two keyword
// lists. Returns 0 when the union is empty.
func JaccardSimilarity(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if it != "" {
			set[it] = true
		}
	}
	return set
}

// ExactMatch returns 1.0 when the two values are case-insensitively equal.
func ExactMatch(a, b string) float64 {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1.0
	}
	return 0.0
}

// TemporalProximity scores how close two timestamps are within the window.
// Outside the window it is 0; inside it decays exponentially, so incidents at
// the same instant score 1.0 and incidents at the window edge score e^-1.
func TemporalProximity(a, b time.Time, windowHours float64) float64 {
	deltaHours := math.Abs(a.Sub(b).Hours())
	if deltaHours > windowHours {
		return 0.0
	}
	return math.Exp(-deltaHours / windowHours)
}

// CosineSparse is the cosine similarity of two sparse token-weight maps.
// Returns 0 when either magnitude is 0.
func CosineSparse(a, b map[string]float64) float64 {
	var dot, magA, magB float64
	for t, wa := range a {
		magA += wa * wa
		if wb, ok := b[t]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		magB += wb * wb
	}
	if magA == 0 || magB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// CosineDense is the cosine similarity of two dense embedding vectors.
// A dimension mismatch is a programmer error and panics.
func CosineDense(a, b []float32) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("embedding dimension mismatch: %d vs %d", len(a), len(b)))
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// SemanticSimilarity is the cosine similarity of the two incidents' TF-IDF
// vectors under the batch IDF.
func SemanticSimilarity(a, b *models.NormalizedIncident, idf map[string]float64) float64 {
	return CosineSparse(
		textproc.ComputeTFIDF(a.Tokens, idf),
		textproc.ComputeTFIDF(b.Tokens, idf),
	)
}

// PrioritySimilarity normalizes the priority distance into a similarity.
func PrioritySimilarity(a, b, maxPriority int) float64 {
	if maxPriority <= 0 {
		maxPriority = models.DefaultMaxPriority
	}
	return 1.0 - math.Abs(float64(a-b))/float64(maxPriority)
}

// Compute is the weighted multi-signal similarity score:
//
//	keyword Jaccard            × w.Keyword
//	avg(category, service)     × w.Category
//	temporal proximity         × w.Temporal
//	TF-IDF cosine              × w.Semantic
//	priority similarity        × w.Priority
//	sentiment exact match      × w.Sentiment
//
// Embedding blending is applied by the clustering engine on top of this score
// so the traditional signal stays independently testable.
func Compute(a, b *models.NormalizedIncident, w models.SimilarityWeights, p Params) float64 {
	categorical := (ExactMatch(a.Category, b.Category) + ExactMatch(a.Service, b.Service)) / 2

	score := JaccardSimilarity(a.Keywords, b.Keywords)*w.Keyword +
		categorical*w.Category +
		TemporalProximity(a.ParsedTime, b.ParsedTime, p.TimeWindowHours)*w.Temporal +
		SemanticSimilarity(a, b, p.IDF)*w.Semantic +
		PrioritySimilarity(a.Priority, b.Priority, p.MaxPriority)*w.Priority +
		ExactMatch(a.Sentiment, b.Sentiment)*w.Sentiment

	return score
}

// Blend combines embedding cosine similarity with the traditional score.
func Blend(embeddingCos, traditional float64) float64 {
	return EmbeddingBlendWeight*embeddingCos + TraditionalBlendWeight*traditional
}
