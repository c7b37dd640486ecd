package catalog

import (
	"encoding/json"
	"fmt"
	"time"
)

// Person is a human identity. Known is false for placeholder identities
// created when a detection was left unresolved.
type Person struct {
	ID          int64
	Known       bool
	FullName    string
	ShortName   string
	Notes       string
	CreatedDate time.Time
	UpdatedDate time.Time
}

// Dog is a dog identity.
type Dog struct {
	ID          int64
	Known       bool
	Name        string
	Breed       string
	Owner       string
	Notes       string
	CreatedDate time.Time
	UpdatedDate time.Time
}

// Image is one ingested photo.
type Image struct {
	ID            int64
	Filename      string
	Filepath      string
	CreatedDate   time.Time
	FileSize      int64
	NumBodies     int
	NumFaces      int
	NumDogs       int
	ProcessedDate time.Time
}

// FaceEncoding is one stored face embedding, anchored to the person it
// belongs to and the image it was extracted from.
type FaceEncoding struct {
	ID       int64
	PersonID int64
	ImageID  int64
	Encoding []float32
	Location []float64 // face bbox [x1, y1, x2, y2] in the source image
}

// IdentityKind says how a person detection is identified.
type IdentityKind int

const (
	// IdentityUnassigned means nobody has named the detection.
	IdentityUnassigned IdentityKind = iota
	// IdentityCatalog points at a persons row.
	IdentityCatalog
	// IdentityLocal carries a name scoped to the one image, without a
	// persons row backing it.
	IdentityLocal
)

// LocalIdentity holds the image-scoped naming fields of a local detection.
type LocalIdentity struct {
	FullName  string
	ShortName string
	Notes     string
}

// IdentityRef is the identity a person detection resolved to. Exactly one
// variant applies: PersonID is meaningful only for IdentityCatalog, Local
// only for IdentityLocal.
type IdentityRef struct {
	Kind     IdentityKind
	PersonID int64
	Local    LocalIdentity
}

// CatalogRef builds a reference to a persons row.
func CatalogRef(personID int64) IdentityRef {
	return IdentityRef{Kind: IdentityCatalog, PersonID: personID}
}

// LocalRef builds an image-scoped identity reference.
func LocalRef(local LocalIdentity) IdentityRef {
	return IdentityRef{Kind: IdentityLocal, Local: local}
}

// PersonDetection is one person (body or face-only) found in an image.
type PersonDetection struct {
	ID             int64
	ImageID        int64
	Identity       IdentityRef
	PersonIndex    int
	BBox           []float64
	Confidence     float64
	HasFace        bool
	FaceEncodingID int64 // 0 when the detection carries no stored embedding
}

// DogDetection is one dog found in an image. DogID is 0 while unassigned.
type DogDetection struct {
	ID         int64
	ImageID    int64
	DogID      int64
	DogIndex   int
	BBox       []float64
	Confidence float64
}

// AverageEncoding is the arithmetic mean of a person's stored embeddings,
// maintained by the optimize pass and used for identity clustering.
// NumSamples records how many embeddings went into the mean.
type AverageEncoding struct {
	ID          int64
	PersonID    int64
	Encoding    []float32
	NumSamples  int
	CreatedDate time.Time
}

// encodeVector serializes an embedding as a JSON array for TEXT storage.
func encodeVector(v []float32) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode vector: %w", err)
	}
	return string(data), nil
}

func decodeVector(s string) ([]float32, error) {
	if s == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decode vector: %w", err)
	}
	return v, nil
}

// encodeBBox serializes a bounding box the same way.
func encodeBBox(b []float64) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode bbox: %w", err)
	}
	return string(data), nil
}

func decodeBBox(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	var b []float64
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		return nil, fmt.Errorf("decode bbox: %w", err)
	}
	return b, nil
}

// formatTime stores timestamps as RFC 3339 UTC text.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTime is lenient: unparseable or empty text becomes the zero time so
// catalogs written by older tooling still load.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
