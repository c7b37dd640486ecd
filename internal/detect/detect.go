// Package detect defines the boundary to the external detection models.
// The object detector, face detector, and embedding extractor are black
// boxes that emit bounding boxes, confidence scores, and embedding vectors;
// this package only carries their outputs.
package detect

import "context"

// BodyDetection is one detected person body.
type BodyDetection struct {
	BBox       []float64 `json:"bbox"` // [x1, y1, x2, y2] in display pixels
	Confidence float64   `json:"confidence"`
}

// DogDetection is one detected dog, optionally with a classified breed.
type DogDetection struct {
	BBox            []float64 `json:"bbox"`
	Confidence      float64   `json:"confidence"`
	Breed           string    `json:"breed,omitempty"`
	BreedConfidence float64   `json:"breed_confidence,omitempty"`
}

// FaceDetection is one detected face with its appearance embedding.
type FaceDetection struct {
	BBox       []float64 `json:"bbox"`
	Confidence float64   `json:"confidence"`
	Embedding  []float32 `json:"embedding"`
}

// Analysis is the full detector output for one image. The detection
// service applies EXIF rotation before detecting, so all boxes are in
// display space; Orientation reports the applied EXIF value (1-8) so
// callers can orient the raw image the same way for display or crops.
type Analysis struct {
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Orientation int             `json:"orientation"`
	Bodies      []BodyDetection `json:"bodies"`
	Dogs        []DogDetection  `json:"dogs"`
	Faces       []FaceDetection `json:"faces"`
}

// Service runs the detection models on image data.
type Service interface {
	// Analyze detects bodies, dogs, and faces (with embeddings) in one image.
	Analyze(ctx context.Context, imageData []byte) (*Analysis, error)
	// ExtractFaces re-runs face detection and embedding extraction only,
	// used when refreshing stored embeddings.
	ExtractFaces(ctx context.Context, imageData []byte) ([]FaceDetection, error)
}
