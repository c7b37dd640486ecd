package dedupe

import (
	"context"
	"log"
	"os"

	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/phash"
)

// DuplicateGroup is a set of images whose perceptual hashes cluster within
// the configured distance. At least one member must survive any removal.
type DuplicateGroup struct {
	Images []catalog.Image
}

// FindDuplicatePhotos hashes every catalog image and groups near
// duplicates. Missing or unreadable files are skipped with a warning.
// progress, when non-nil, is called once per image visited.
func FindDuplicatePhotos(ctx context.Context, store *catalog.Store, threshold int, progress func()) ([]DuplicateGroup, error) {
	images, err := store.ListImages(ctx)
	if err != nil {
		return nil, err
	}

	byHash := make(map[phash.Hash][]catalog.Image)
	var order []phash.Hash
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if progress != nil {
			progress()
		}

		data, err := os.ReadFile(img.Filepath)
		if err != nil {
			log.Printf("skipping %s: %v", img.Filepath, err)
			continue
		}
		h, err := phash.Compute(data)
		if err != nil {
			log.Printf("skipping %s: %v", img.Filepath, err)
			continue
		}
		if _, seen := byHash[h]; !seen {
			order = append(order, h)
		}
		byHash[h] = append(byHash[h], img)
	}

	var groups []DuplicateGroup
	for _, cluster := range GroupHashes(order, threshold) {
		var members []catalog.Image
		for _, h := range cluster {
			members = append(members, byHash[h]...)
		}
		if len(members) >= 2 {
			groups = append(groups, DuplicateGroup{Images: members})
		}
	}
	return groups, nil
}

// GroupHashes clusters distinct hashes by greedy transitive expansion:
// starting from each unclustered hash, every unclustered hash within the
// Hamming threshold of any member joins the cluster, so chains like
// A~B~C group together even when A and C are far apart.
func GroupHashes(hashes []phash.Hash, threshold int) [][]phash.Hash {
	clustered := make(map[phash.Hash]bool, len(hashes))
	var clusters [][]phash.Hash

	for _, seed := range hashes {
		if clustered[seed] {
			continue
		}
		cluster := []phash.Hash{seed}
		clustered[seed] = true

		for i := 0; i < len(cluster); i++ {
			for _, other := range hashes {
				if clustered[other] {
					continue
				}
				if cluster[i].Similar(other, threshold) {
					cluster = append(cluster, other)
					clustered[other] = true
				}
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// DeletePhotos removes the selected images from the catalog in one
// transaction, and optionally deletes the files themselves afterwards.
// File removal is the only irreversible side effect in the system;
// callers gate it behind a separate confirmation.
func DeletePhotos(ctx context.Context, store *catalog.Store, images []catalog.Image, removeFiles bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ids := make([]int64, len(images))
	for i, img := range images {
		ids[i] = img.ID
	}
	if err := store.DeleteImages(ctx, ids); err != nil {
		return err
	}
	if removeFiles {
		for _, img := range images {
			if err := os.Remove(img.Filepath); err != nil && !os.IsNotExist(err) {
				log.Printf("could not remove %s: %v", img.Filepath, err)
			}
		}
	}
	return nil
}
