// Package cluster partitions a preprocessed incident batch into clusters
// using a density-based (DBSCAN-inspired) algorithm.
package cluster

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/transitops/patternmine/internal/similarity"
	"github.com/transitops/patternmine/internal/textproc"
	"github.com/transitops/patternmine/pkg/models"
)

// Engine runs density-based clustering over one incident batch. State is
// per-run; an Engine is not reused across invocations.
//
// Unlike textbook DBSCAN the expansion step does not validate mutual
// reachability, so a border incident adjacent to two potential clusters is
// absorbed by whichever core point reaches it first. Traversal order is
// fixed: ascending incident time, ties broken by ascending incident ID.
type Engine struct {
	cfg        models.ClusteringConfig
	embeddings map[string][]float32

	incidents []*models.NormalizedIncident
	idf       map[string]float64
	visited   map[string]bool
	clustered map[string]bool
}

// New creates a clustering engine for one run. embeddings may be nil; when a
// vector exists for both incidents of a pair, the blended similarity is used.
func New(cfg models.ClusteringConfig, embeddings map[string][]float32) *Engine {
	return &Engine{
		cfg:        cfg,
		embeddings: embeddings,
		visited:    make(map[string]bool),
		clustered:  make(map[string]bool),
	}
}

// Cluster partitions the incidents. Every incident joins at most one cluster.
// Noise points become singleton clusters only when MinClusterSize is 1;
// otherwise they are dropped from the output.
func (e *Engine) Cluster(incidents []*models.NormalizedIncident) [][]*models.NormalizedIncident {
	if len(incidents) == 0 {
		return nil
	}

	corpus := make([][]string, len(incidents))
	for i, inc := range incidents {
		corpus[i] = inc.Tokens
	}
	e.idf = textproc.ComputeIDF(corpus)

	// Deterministic processing order.
	e.incidents = make([]*models.NormalizedIncident, len(incidents))
	copy(e.incidents, incidents)
	sort.SliceStable(e.incidents, func(i, j int) bool {
		a, b := e.incidents[i], e.incidents[j]
		if !a.ParsedTime.Equal(b.ParsedTime) {
			return a.ParsedTime.Before(b.ParsedTime)
		}
		return a.ID < b.ID
	})

	var clusters [][]*models.NormalizedIncident
	noise := 0

	for _, inc := range e.incidents {
		if e.visited[inc.ID] {
			continue
		}
		e.visited[inc.ID] = true

		neighbors := e.findNeighbors(inc)
		if len(neighbors) >= e.cfg.MinClusterSize-1 {
			clusters = append(clusters, e.expand(inc, neighbors))
			continue
		}

		// Noise point.
		if e.cfg.MinClusterSize == 1 {
			e.clustered[inc.ID] = true
			clusters = append(clusters, []*models.NormalizedIncident{inc})
		} else {
			noise++
		}
	}

	log.Debug().
		Int("incidents", len(incidents)).
		Int("clusters", len(clusters)).
		Int("noise", noise).
		Msg("Clustering completed")

	return clusters
}

// expand grows a cluster from a core point using a FIFO work queue: the
// seed's neighbors are pushed, popped one at a time, and any popped neighbor
// that is itself a core point contributes its own unclustered neighbors to
// the frontier, so density-connected incidents are absorbed transitively.
func (e *Engine) expand(core *models.NormalizedIncident, neighbors []*models.NormalizedIncident) []*models.NormalizedIncident {
	cluster := []*models.NormalizedIncident{core}
	e.clustered[core.ID] = true

	queue := make([]*models.NormalizedIncident, len(neighbors))
	copy(queue, neighbors)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if !e.clustered[current.ID] {
			e.clustered[current.ID] = true
			cluster = append(cluster, current)
		}

		if e.visited[current.ID] {
			continue
		}
		e.visited[current.ID] = true

		currentNeighbors := e.findNeighbors(current)
		if len(currentNeighbors) >= e.cfg.MinClusterSize-1 {
			for _, n := range currentNeighbors {
				if !e.clustered[n.ID] {
					queue = append(queue, n)
				}
			}
		}
	}

	return cluster
}

// findNeighbors returns every other incident within the time window whose
// blended similarity meets the threshold. The time window is a hard gate;
// no amount of content similarity softens it.
func (e *Engine) findNeighbors(inc *models.NormalizedIncident) []*models.NormalizedIncident {
	params := similarity.Params{
		TimeWindowHours: e.cfg.TimeWindowHours,
		IDF:             e.idf,
		MaxPriority:     e.cfg.MaxPriority,
	}

	var neighbors []*models.NormalizedIncident
	for _, other := range e.incidents {
		if other.ID == inc.ID {
			continue
		}
		deltaHours := inc.ParsedTime.Sub(other.ParsedTime).Hours()
		if deltaHours < 0 {
			deltaHours = -deltaHours
		}
		if deltaHours > e.cfg.TimeWindowHours {
			continue
		}

		score := similarity.Compute(inc, other, e.cfg.Weights, params)
		if vecA, ok := e.embeddings[inc.ID]; ok {
			if vecB, ok := e.embeddings[other.ID]; ok {
				score = similarity.Blend(similarity.CosineDense(vecA, vecB), score)
			}
		}

		if score >= e.cfg.SimilarityThreshold {
			neighbors = append(neighbors, other)
		}
	}
	return neighbors
}
