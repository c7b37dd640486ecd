// Package dedupe cleans the catalog: exact-key identity merges, perceptual
// photo duplicate grouping, and embedding-distance identity clustering.
package dedupe

import (
	"context"
	"sort"

	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/names"
)

// MergeExactPersons merges known persons whose normalized name fields are
// identical. The lowest id in each cluster survives; no confirmation is
// asked because the match key is exact. Persons without a full name are
// never grouped: a blank name is no evidence of identity. Returns the
// number of identities merged away.
func MergeExactPersons(ctx context.Context, store *catalog.Store) (int, error) {
	persons, err := store.ListPersons(ctx, true)
	if err != nil {
		return 0, err
	}

	clusters := make(map[string][]int64)
	for _, p := range persons {
		if names.Normalize(p.FullName) == "" {
			continue
		}
		key := names.PersonKey(p.FullName, p.ShortName)
		clusters[key] = append(clusters[key], p.ID)
	}

	merged := 0
	for _, ids := range clusters {
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		if err := store.MergePersons(ctx, ids[0], ids[1:]); err != nil {
			return merged, err
		}
		merged += len(ids) - 1
	}
	return merged, nil
}

// MergeExactDogs is the dog counterpart of MergeExactPersons, keyed on
// name, breed, and owner.
func MergeExactDogs(ctx context.Context, store *catalog.Store) (int, error) {
	dogs, err := store.ListDogs(ctx, true)
	if err != nil {
		return 0, err
	}

	clusters := make(map[string][]int64)
	for _, d := range dogs {
		if names.Normalize(d.Name) == "" {
			continue
		}
		key := names.DogKey(d.Name, d.Breed, d.Owner)
		clusters[key] = append(clusters[key], d.ID)
	}

	merged := 0
	for _, ids := range clusters {
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		if err := store.MergeDogs(ctx, ids[0], ids[1:]); err != nil {
			return merged, err
		}
		merged += len(ids) - 1
	}
	return merged, nil
}
