// Package geometry provides bounding box math for matching detected
// face regions to detected body regions.
//
// Bounding boxes are [x1, y1, x2, y2] slices in pixel coordinates, the
// format emitted by the object and face detectors.
package geometry

// Valid reports whether bbox is a well-formed, non-degenerate box.
func Valid(bbox []float64) bool {
	return len(bbox) == 4 && bbox[2] > bbox[0] && bbox[3] > bbox[1]
}

// Area returns the area of a bounding box, or 0 for a degenerate one.
func Area(bbox []float64) float64 {
	if !Valid(bbox) {
		return 0
	}
	return (bbox[2] - bbox[0]) * (bbox[3] - bbox[1])
}

// Center returns the center point of a bounding box.
func Center(bbox []float64) (x, y float64) {
	if len(bbox) != 4 {
		return 0, 0
	}
	return (bbox[0] + bbox[2]) / 2, (bbox[1] + bbox[3]) / 2
}

// Contains reports whether point (x, y) lies inside the box, borders included.
func Contains(bbox []float64, x, y float64) bool {
	if len(bbox) != 4 {
		return false
	}
	return bbox[0] <= x && x <= bbox[2] && bbox[1] <= y && y <= bbox[3]
}

// Intersection returns the area of the overlap between two boxes.
func Intersection(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	return (x2 - x1) * (y2 - y1)
}

// OverlapRatio returns the fraction of the face box covered by the body box
// (intersection area divided by face area). Returns 0 when either box is
// degenerate, so callers never divide by zero.
func OverlapRatio(face, body []float64) float64 {
	faceArea := Area(face)
	if faceArea <= 0 {
		return 0
	}
	return Intersection(face, body) / faceArea
}
