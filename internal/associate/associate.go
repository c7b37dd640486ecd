// Package associate matches independently detected face regions to body
// regions within one image and orders the combined result for resolution.
package associate

import (
	"sort"

	"github.com/ykarpov/photodex/internal/geometry"
)

// Kind classifies a worklist item.
type Kind string

const (
	// BodyWithFace is a body box that claimed a face.
	BodyWithFace Kind = "body-with-face"
	// BodyWithoutFace is a body box no face matched.
	BodyWithoutFace Kind = "body-without-face"
	// FaceOnly is a face that matched no body; its bounding box is the
	// face's own box.
	FaceOnly Kind = "face-only"
)

// Body is a person bounding box from the object detector.
type Body struct {
	Index      int
	BBox       []float64
	Confidence float64
}

// Face is a face bounding box with its embedding from the face detector.
type Face struct {
	BBox       []float64
	Confidence float64
	Embedding  []float32
}

// Item is one detection ready for identity resolution.
type Item struct {
	Kind       Kind
	BodyIndex  int // -1 for face-only items
	BBox       []float64
	Confidence float64
	FaceBBox   []float64 // nil when Kind is BodyWithoutFace
	Embedding  []float32 // nil when Kind is BodyWithoutFace
}

// HasFace reports whether the item carries a matched face region.
func (it Item) HasFace() bool {
	return it.Kind != BodyWithoutFace
}

// Associate matches faces to bodies and returns the combined worklist.
//
// For every face, the body boxes that contain the face's center point are
// scored by intersection-area over face-area; the not-yet-claimed body with
// the highest ratio above overlapThreshold claims the face. One body accepts
// at most one face, first claim in face iteration order wins. Degenerate
// (zero-area) boxes from either detector are dropped before matching.
func Associate(bodies []Body, faces []Face, overlapThreshold float64) []Item {
	valid := make([]Body, 0, len(bodies))
	for _, b := range bodies {
		if geometry.Valid(b.BBox) {
			valid = append(valid, b)
		}
	}

	claimed := make([]bool, len(valid))
	claimedFace := make([]Face, len(valid))
	items := make([]Item, 0, len(valid)+len(faces))

	for _, face := range faces {
		if !geometry.Valid(face.BBox) {
			continue
		}
		cx, cy := geometry.Center(face.BBox)

		bestIdx, bestOverlap := -1, 0.0
		for i, body := range valid {
			if claimed[i] {
				continue
			}
			if !geometry.Contains(body.BBox, cx, cy) {
				continue
			}
			overlap := geometry.OverlapRatio(face.BBox, body.BBox)
			if overlap > bestOverlap {
				bestOverlap, bestIdx = overlap, i
			}
		}

		if bestIdx >= 0 && bestOverlap > overlapThreshold {
			claimed[bestIdx] = true
			claimedFace[bestIdx] = face
		} else {
			items = append(items, Item{
				Kind:       FaceOnly,
				BodyIndex:  -1,
				BBox:       face.BBox,
				Confidence: face.Confidence,
				FaceBBox:   face.BBox,
				Embedding:  face.Embedding,
			})
		}
	}

	for i, body := range valid {
		item := Item{
			Kind:       BodyWithoutFace,
			BodyIndex:  body.Index,
			BBox:       body.BBox,
			Confidence: body.Confidence,
		}
		if claimed[i] {
			item.Kind = BodyWithFace
			item.FaceBBox = claimedFace[i].BBox
			item.Embedding = claimedFace[i].Embedding
		}
		items = append(items, item)
	}

	return items
}

// SortWorklist orders items for resolution: detections with a face before
// detections without, and within each tier by box area descending (face area
// when a face is present, body area otherwise). Large confident faces get
// resolved first so their identities are reserved before smaller, more
// ambiguous detections are considered.
func SortWorklist(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.HasFace() != b.HasFace() {
			return a.HasFace()
		}
		return sortArea(a) > sortArea(b)
	})
}

func sortArea(it Item) float64 {
	if it.HasFace() {
		return geometry.Area(it.FaceBBox)
	}
	return geometry.Area(it.BBox)
}
