// Package match implements nearest-neighbor identity matching of face
// embeddings against a catalog of known embeddings.
package match

import (
	"math"
	"sync"
)

// Candidate is one known embedding owned by an identity. An identity with
// several stored embeddings contributes several candidates.
type Candidate struct {
	IdentityID int64
	Embedding  []float32
}

// Result is the best match found for a query embedding.
type Result struct {
	IdentityID int64
	Distance   float64
}

// Source finds the best identity match for a query embedding. The skip
// function excludes identities (e.g. ones already assigned within the
// current image); a nil skip excludes nothing.
type Source interface {
	Best(query []float32, skip func(identityID int64) bool) (Result, bool)
}

// EuclideanDistance computes the Euclidean distance between two vectors.
// Returns +Inf for mismatched or empty vectors so invalid candidates never win.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Mean returns the arithmetic mean of a set of equal-length vectors,
// or nil if the set is empty or inconsistent.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil
		}
		for i := range v {
			sum[i] += float64(v[i])
		}
	}
	mean := make([]float32, dim)
	for i := range sum {
		mean[i] = float32(sum[i] / float64(len(vectors)))
	}
	return mean
}

// Catalog is a brute-force Source over an in-memory candidate list.
// Candidates are scanned in insertion order, so ties resolve to the
// first-seen candidate; callers needing determinism supply a stable order.
// New embeddings appended during a run become visible immediately.
type Catalog struct {
	threshold  float64
	mu         sync.RWMutex
	candidates []Candidate
}

// NewCatalog creates a brute-force matcher accepting matches with a
// distance strictly below threshold.
func NewCatalog(threshold float64, candidates []Candidate) *Catalog {
	return &Catalog{threshold: threshold, candidates: candidates}
}

// Add appends a candidate to the catalog.
func (c *Catalog) Add(candidate Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = append(c.candidates, candidate)
}

// Len returns the number of candidates.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.candidates)
}

// Best scans every candidate and returns the closest one under the
// threshold, or false if none qualifies.
func (c *Catalog) Best(query []float32, skip func(int64) bool) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := Result{Distance: math.Inf(1)}
	found := false
	for _, cand := range c.candidates {
		if skip != nil && skip(cand.IdentityID) {
			continue
		}
		d := EuclideanDistance(query, cand.Embedding)
		if d < best.Distance {
			best = Result{IdentityID: cand.IdentityID, Distance: d}
			found = true
		}
	}
	if !found || best.Distance >= c.threshold {
		return Result{}, false
	}
	return best, true
}
