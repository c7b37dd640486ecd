package match

import (
	"github.com/coder/hnsw"
)

// indexMaxNeighbors is the M parameter of the HNSW graph.
const indexMaxNeighbors = 16

// searchOverfetch controls how many neighbors a lookup retrieves before
// identity exclusions are applied.
const searchOverfetch = 16

// Index is an approximate-nearest-neighbor Source backed by an HNSW graph.
// It honors the same contract as Catalog (best match strictly under the
// threshold, or none) and is intended for large, read-only embedding sets
// such as a reference catalog.
type Index struct {
	threshold  float64
	graph      *hnsw.Graph[int64]
	identities map[int64]int64 // graph node key -> identity id
}

// NewIndex builds an HNSW index over the given candidates.
func NewIndex(threshold float64, candidates []Candidate) *Index {
	g := hnsw.NewGraph[int64]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance

	idx := &Index{
		threshold:  threshold,
		graph:      g,
		identities: make(map[int64]int64, len(candidates)),
	}

	for i, cand := range candidates {
		if len(cand.Embedding) == 0 {
			continue
		}
		key := int64(i)
		g.Add(hnsw.MakeNode(key, cand.Embedding))
		idx.identities[key] = cand.IdentityID
	}
	return idx
}

// Len returns the number of indexed candidates.
func (idx *Index) Len() int {
	return len(idx.identities)
}

// Best returns the closest non-excluded identity under the threshold.
// Distances are recomputed exactly from the node embeddings, so the graph
// approximation only affects recall, not the acceptance decision.
func (idx *Index) Best(query []float32, skip func(int64) bool) (Result, bool) {
	if len(idx.identities) == 0 {
		return Result{}, false
	}

	neighbors := idx.graph.Search(query, searchOverfetch)
	for _, n := range neighbors {
		identityID, ok := idx.identities[n.Key]
		if !ok {
			continue
		}
		if skip != nil && skip(identityID) {
			continue
		}
		d := EuclideanDistance(query, n.Value)
		if d < idx.threshold {
			return Result{IdentityID: identityID, Distance: d}, true
		}
		// Neighbors come back ordered by distance; the first admissible
		// one over the threshold means no later one can qualify.
		return Result{}, false
	}
	return Result{}, false
}
