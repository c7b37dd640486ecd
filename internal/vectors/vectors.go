// Package vectors is the embedding maintenance pass: regenerating stored
// face embeddings from their source images after a detector model upgrade,
// and maintaining per-person average embeddings for identity clustering.
package vectors

import (
	"context"
	"log"
	"os"
	"sort"

	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/detect"
	"github.com/ykarpov/photodex/internal/imaging"
	"github.com/ykarpov/photodex/internal/match"
)

// cropPad gives the detector some context around the stored face box.
const cropPad = 16

// Update re-extracts every known person's embeddings from the original
// face regions and replaces them wholesale, one person per transaction.
// A region that can no longer be extracted (missing file, no face found)
// keeps its prior embedding so the person never loses samples. Returns
// the number of persons updated. progress, when non-nil, runs once per
// person.
func Update(ctx context.Context, store *catalog.Store, detector detect.Service, progress func()) (int, error) {
	persons, err := store.ListPersons(ctx, true)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, p := range persons {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if progress != nil {
			progress()
		}

		sources, err := store.ListEncodingSourcesForPerson(ctx, p.ID)
		if err != nil {
			return updated, err
		}
		if len(sources) == 0 {
			continue
		}

		replacements := make([]catalog.FaceEncoding, 0, len(sources))
		for _, src := range sources {
			embedding, ok := reextract(ctx, detector, src)
			if !ok {
				// Keep the stored sample rather than shrinking the set.
				embedding = src.Encoding
			}
			replacements = append(replacements, catalog.FaceEncoding{
				PersonID: p.ID,
				ImageID:  src.ImageID,
				Encoding: embedding,
				Location: src.Location,
			})
		}

		if err := store.ReplaceEncodingsForPerson(ctx, p.ID, replacements); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// reextract crops the stored face region out of the source file and runs
// face extraction on the crop.
func reextract(ctx context.Context, detector detect.Service, src catalog.EncodingSource) ([]float32, bool) {
	data, err := os.ReadFile(src.Filepath)
	if err != nil {
		log.Printf("keeping prior embedding, cannot read %s: %v", src.Filepath, err)
		return nil, false
	}
	img, err := imaging.Decode(data)
	if err != nil {
		log.Printf("keeping prior embedding, cannot decode %s: %v", src.Filepath, err)
		return nil, false
	}

	crop := imaging.Crop(img, src.Location, cropPad)
	cropData, err := imaging.EncodeJPEG(crop, 95)
	if err != nil {
		log.Printf("keeping prior embedding, cannot encode crop of %s: %v", src.Filepath, err)
		return nil, false
	}

	faces, err := detector.ExtractFaces(ctx, cropData)
	if err != nil {
		log.Printf("keeping prior embedding, extraction failed for %s: %v", src.Filepath, err)
		return nil, false
	}
	if len(faces) == 0 {
		log.Printf("keeping prior embedding, no face found in crop of %s", src.Filepath)
		return nil, false
	}

	sort.SliceStable(faces, func(i, j int) bool { return faces[i].Confidence > faces[j].Confidence })
	return faces[0].Embedding, true
}

// Optimize recomputes the average embedding of every known person with at
// least one sample. Returns the number of averages written.
func Optimize(ctx context.Context, store *catalog.Store, progress func()) (int, error) {
	persons, err := store.ListPersons(ctx, true)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, p := range persons {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if progress != nil {
			progress()
		}

		encodings, err := store.ListEncodingsForPerson(ctx, p.ID)
		if err != nil {
			return written, err
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
			log.Printf("skipping person %d: inconsistent embedding dimensions", p.ID)
			continue
		}
		if err := store.UpsertAverageEncoding(ctx, p.ID, mean, len(vectors)); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
