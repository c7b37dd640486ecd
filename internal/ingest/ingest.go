// Package ingest walks a photo directory, runs detection, associates faces
// with bodies, and feeds the sorted worklist through resolution.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ykarpov/photodex/internal/associate"
	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/config"
	"github.com/ykarpov/photodex/internal/detect"
	"github.com/ykarpov/photodex/internal/imaging"
	"github.com/ykarpov/photodex/internal/resolve"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
}

// ReprocessQuestion asks what to do with an already-ingested image when
// the policy is "ask".
type ReprocessQuestion struct {
	Path string
}

// ReprocessAnswer is the reply. ApplyToAll locks the choice in for the
// rest of the run.
type ReprocessAnswer struct {
	Reprocess  bool
	ApplyToAll bool
}

// ProgressInfo reports per-file progress to an optional callback.
type ProgressInfo struct {
	Current int
	Total   int
	Path    string
}

// Options tunes one ingestion run.
type Options struct {
	Reprocess        config.ReprocessPolicy
	OverlapThreshold float64
	// Ask answers ReprocessQuestion payloads when the policy is "ask".
	// Nil falls back to skipping.
	Ask        resolve.AskFunc
	OnProgress func(ProgressInfo)
}

// Result summarizes a run.
type Result struct {
	Scanned   int
	Processed int
	Skipped   int
	Failed    int
}

// Ingestor drives ingestion for one catalog.
type Ingestor struct {
	store       *catalog.Store
	detector    detect.Service
	coordinator *resolve.Coordinator
}

func New(store *catalog.Store, detector detect.Service, coordinator *resolve.Coordinator) *Ingestor {
	return &Ingestor{store: store, detector: detector, coordinator: coordinator}
}

// Run ingests every image file under root. Already-committed images stay
// committed when the run is canceled; the context is checked between
// files. Per-file failures are logged and counted, not fatal.
func (ing *Ingestor) Run(ctx context.Context, root string, opts Options) (*Result, error) {
	files, err := collectImageFiles(root)
	if err != nil {
		return nil, err
	}

	policy := opts.Reprocess
	if !policy.Valid() {
		policy = config.ReprocessAsk
	}

	result := &Result{Scanned: len(files)}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if opts.OnProgress != nil {
			opts.OnProgress(ProgressInfo{Current: i + 1, Total: len(files), Path: path})
		}

		processed, err := ing.processFile(ctx, path, &policy, opts)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			log.Printf("failed to process %s: %v", path, err)
			result.Failed++
			continue
		}
		if processed {
			result.Processed++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

// processFile ingests one image. It reports false when the file was
// skipped under the reprocess policy. policy is a pointer so an
// apply-to-all answer sticks for the rest of the run.
func (ing *Ingestor) processFile(ctx context.Context, path string, policy *config.ReprocessPolicy, opts Options) (bool, error) {
	var imageID int64

	existing, err := ing.store.GetImageByPath(ctx, path)
	switch {
	case err == nil:
		reprocess, err := ing.shouldReprocess(ctx, path, policy, opts.Ask)
		if err != nil {
			return false, err
		}
		if !reprocess {
			return false, nil
		}
		if err := ing.store.ClearImageData(ctx, existing.ID); err != nil {
			return false, err
		}
		imageID = existing.ID

	case errors.Is(err, catalog.ErrNotFound):
		info, err := os.Stat(path)
		if err != nil {
			return false, err
		}
		img := &catalog.Image{
			Filename:    filepath.Base(path),
			Filepath:    path,
			CreatedDate: info.ModTime(),
			FileSize:    info.Size(),
		}
		imageID, err = ing.store.InsertImage(ctx, img)
		if err != nil {
			return false, err
		}

	default:
		return false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	analysis, err := ing.detector.Analyze(ctx, data)
	if err != nil {
		return false, fmt.Errorf("detector: %w", err)
	}

	// The photo is only needed for prompt face crops; failing to decode
	// it locally degrades the prompts but not the run.
	photo, err := imaging.Decode(data)
	if err != nil {
		log.Printf("cannot decode %s for face crops: %v", path, err)
		photo = nil
	} else if analysis.Orientation > 1 {
		photo = imaging.Orient(photo, analysis.Orientation)
	}

	bodies := make([]associate.Body, len(analysis.Bodies))
	for i, b := range analysis.Bodies {
		bodies[i] = associate.Body{Index: i, BBox: b.BBox, Confidence: b.Confidence}
	}
	faces := make([]associate.Face, len(analysis.Faces))
	for i, f := range analysis.Faces {
		faces[i] = associate.Face{BBox: f.BBox, Confidence: f.Confidence, Embedding: f.Embedding}
	}

	items := associate.Associate(bodies, faces, opts.OverlapThreshold)
	associate.SortWorklist(items)

	if err := ing.coordinator.ResolveImage(ctx, imageID, path, photo, items, analysis.Dogs); err != nil {
		return false, err
	}

	numFaces := 0
	for _, item := range items {
		if item.HasFace() {
			numFaces++
		}
	}
	if err := ing.store.UpdateImageCounts(ctx, imageID, len(items), numFaces, len(analysis.Dogs)); err != nil {
		return false, err
	}
	return true, nil
}

func (ing *Ingestor) shouldReprocess(ctx context.Context, path string, policy *config.ReprocessPolicy, ask resolve.AskFunc) (bool, error) {
	switch *policy {
	case config.ReprocessSkip:
		return false, nil
	case config.ReprocessAlways:
		return true, nil
	}

	if ask == nil {
		return false, nil
	}
	answer, err := ask(ctx, &ReprocessQuestion{Path: path})
	if err != nil {
		return false, err
	}
	reply, ok := answer.(*ReprocessAnswer)
	if !ok {
		return false, fmt.Errorf("reprocess question answered with %T", answer)
	}
	if reply.ApplyToAll {
		if reply.Reprocess {
			*policy = config.ReprocessAlways
		} else {
			*policy = config.ReprocessSkip
		}
	}
	return reply.Reprocess, nil
}

// collectImageFiles walks root and returns image file paths in sorted
// order, so runs are deterministic.
func collectImageFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
