package vectors

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/detect"
	"github.com/ykarpov/photodex/internal/imaging"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeDetector returns a fixed embedding for every extraction request.
type fakeDetector struct {
	embedding []float32
	err       error
	calls     int
}

func (f *fakeDetector) Analyze(ctx context.Context, imageData []byte) (*detect.Analysis, error) {
	return nil, errors.New("not used")
}

func (f *fakeDetector) ExtractFaces(ctx context.Context, imageData []byte) ([]detect.FaceDetection, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []detect.FaceDetection{
		{BBox: []float64{0, 0, 10, 10}, Confidence: 0.5, Embedding: []float32{0, 0}},
		{BBox: []float64{0, 0, 20, 20}, Confidence: 0.9, Embedding: f.embedding},
	}, nil
}

func writePhoto(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.Gray{Y: 100})
		}
	}
	data, err := imaging.EncodeJPEG(img, 90)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func seedPerson(t *testing.T, s *catalog.Store, path string, encodings ...[]float32) int64 {
	t.Helper()
	ctx := context.Background()
	personID, err := s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "Jana"})
	if err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	imageID, err := s.InsertImage(ctx, &catalog.Image{Filename: filepath.Base(path), Filepath: path})
	if err != nil {
		t.Fatalf("InsertImage: %v", err)
	}
	for _, e := range encodings {
		if _, err := s.InsertFaceEncoding(ctx, &catalog.FaceEncoding{
			PersonID: personID, ImageID: imageID,
			Encoding: e, Location: []float64{10, 10, 60, 60},
		}); err != nil {
			t.Fatalf("InsertFaceEncoding: %v", err)
		}
	}
	return personID
}

func TestUpdateReplacesEmbeddings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	path := writePhoto(t, t.TempDir(), "a.jpg")
	personID := seedPerson(t, s, path, []float32{1, 1}, []float32{2, 2})

	detector := &fakeDetector{embedding: []float32{9, 9}}
	updated, err := Update(ctx, s, detector, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated %d persons, want 1", updated)
	}
	if detector.calls != 2 {
		t.Errorf("detector called %d times, want 2", detector.calls)
	}

	encodings, _ := s.ListEncodingsForPerson(ctx, personID)
	if len(encodings) != 2 {
		t.Fatalf("person has %d encodings, want 2", len(encodings))
	}
	for _, e := range encodings {
		if e.Encoding[0] != 9 {
			t.Errorf("encoding = %v, want the re-extracted value", e.Encoding)
		}
	}
}

func TestUpdateKeepsPriorOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// The source file does not exist, so extraction cannot run.
	personID := seedPerson(t, s, "/nonexistent/gone.jpg", []float32{1, 1})

	detector := &fakeDetector{embedding: []float32{9, 9}}
	updated, err := Update(ctx, s, detector, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated %d persons, want 1", updated)
	}
	if detector.calls != 0 {
		t.Errorf("detector called %d times for a missing file", detector.calls)
	}

	encodings, _ := s.ListEncodingsForPerson(ctx, personID)
	if len(encodings) != 1 || encodings[0].Encoding[0] != 1 {
		t.Errorf("prior embedding should survive: %+v", encodings)
	}
}

func TestUpdateKeepsPriorWhenExtractionErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	path := writePhoto(t, t.TempDir(), "b.jpg")
	personID := seedPerson(t, s, path, []float32{3, 3})

	detector := &fakeDetector{err: errors.New("model not loaded")}
	if _, err := Update(ctx, s, detector, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}

	encodings, _ := s.ListEncodingsForPerson(ctx, personID)
	if len(encodings) != 1 || encodings[0].Encoding[0] != 3 {
		t.Errorf("prior embedding should survive an extraction error: %+v", encodings)
	}
}

func TestOptimizeComputesAverages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	path := writePhoto(t, t.TempDir(), "c.jpg")
	personID := seedPerson(t, s, path, []float32{1, 0}, []float32{0, 1}, []float32{2, 2})

	// A known person without encodings gets no average.
	s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "Empty"})

	written, err := Optimize(ctx, s, nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if written != 1 {
		t.Errorf("wrote %d averages, want 1", written)
	}

	averages, err := s.ListAverageEncodings(ctx)
	if err != nil {
		t.Fatalf("ListAverageEncodings: %v", err)
	}
	if len(averages) != 1 || averages[0].PersonID != personID {
		t.Fatalf("averages = %+v", averages)
	}
	if averages[0].Encoding[0] != 1 || averages[0].Encoding[1] != 1 {
		t.Errorf("average = %v, want [1 1]", averages[0].Encoding)
	}
	if averages[0].NumSamples != 3 {
		t.Errorf("NumSamples = %d, want 3", averages[0].NumSamples)
	}
}

func TestUpdateKeepsPriorPerRegion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	personID, err := s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "Mixed"})
	if err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	goodPath := writePhoto(t, t.TempDir(), "good.jpg")
	goodImage, _ := s.InsertImage(ctx, &catalog.Image{Filename: "good.jpg", Filepath: goodPath})
	goneImage, _ := s.InsertImage(ctx, &catalog.Image{Filename: "gone.jpg", Filepath: "/nonexistent/gone.jpg"})
	for _, seed := range []struct {
		imageID  int64
		encoding []float32
	}{
		{goodImage, []float32{1, 1}},
		{goneImage, []float32{2, 2}},
	} {
		if _, err := s.InsertFaceEncoding(ctx, &catalog.FaceEncoding{
			PersonID: personID, ImageID: seed.imageID,
			Encoding: seed.encoding, Location: []float64{10, 10, 60, 60},
		}); err != nil {
			t.Fatalf("InsertFaceEncoding: %v", err)
		}
	}

	detector := &fakeDetector{embedding: []float32{9, 9}}
	if _, err := Update(ctx, s, detector, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The readable region is re-extracted, the missing one keeps its
	// stored embedding; each stays paired with its own image.
	encodings, _ := s.ListEncodingsForPerson(ctx, personID)
	if len(encodings) != 2 {
		t.Fatalf("person has %d encodings, want 2", len(encodings))
	}
	for _, e := range encodings {
		switch e.ImageID {
		case goodImage:
			if e.Encoding[0] != 9 {
				t.Errorf("readable region = %v, want the re-extracted value", e.Encoding)
			}
		case goneImage:
			if e.Encoding[0] != 2 {
				t.Errorf("missing region = %v, want its stored embedding", e.Encoding)
			}
		default:
			t.Errorf("encoding points at unexpected image %d", e.ImageID)
		}
	}
}
