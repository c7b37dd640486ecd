package dedupe

import (
	"context"
	"errors"
	"fmt"

	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/match"
)

// SimilarPair is a candidate identity duplicate: two known persons whose
// average embeddings sit closer than the cluster threshold despite
// different display names. The exact-key merger catches identical names;
// this catches the rest, so each pair needs human adjudication.
type SimilarPair struct {
	A        catalog.Person
	B        catalog.Person
	Distance float64
}

// FindSimilarIdentities computes each known person's average embedding and
// returns every pair below the threshold, ordered by the lower id first
// within a pair. Persons without embeddings are skipped.
func FindSimilarIdentities(ctx context.Context, store *catalog.Store, threshold float64) ([]SimilarPair, error) {
	persons, err := store.ListPersons(ctx, true)
	if err != nil {
		return nil, err
	}

	type averaged struct {
		person catalog.Person
		mean   []float32
	}
	var candidates []averaged
	for _, p := range persons {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		encodings, err := store.ListEncodingsForPerson(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if len(encodings) == 0 {
			continue
		}
		vectors := make([][]float32, len(encodings))
		for i, e := range encodings {
			vectors[i] = e.Encoding
		}
		mean := match.Mean(vectors)
		if mean == nil {
			continue
		}
		candidates = append(candidates, averaged{person: p, mean: mean})
	}

	var pairs []SimilarPair
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			d := match.EuclideanDistance(candidates[i].mean, candidates[j].mean)
			if d < threshold {
				pairs = append(pairs, SimilarPair{
					A:        candidates[i].person,
					B:        candidates[j].person,
					Distance: d,
				})
			}
		}
	}
	return pairs, nil
}

// MergeIdentities merges a similar pair after adjudication. The lower id
// always survives, independent of which side the human favored; fields
// carries the adjudicated display values for the survivor. Returns the
// kept id.
func MergeIdentities(ctx context.Context, store *catalog.Store, aID, bID int64, fields catalog.Person) (int64, error) {
	if aID == bID {
		return 0, errors.New("cannot merge an identity with itself")
	}
	keep, drop := aID, bID
	if bID < aID {
		keep, drop = bID, aID
	}
	if err := store.MergePersonInto(ctx, keep, drop, fields); err != nil {
		return 0, fmt.Errorf("merge person %d into %d: %w", drop, keep, err)
	}
	return keep, nil
}
