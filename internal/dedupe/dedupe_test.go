package dedupe

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/imaging"
	"github.com/ykarpov/photodex/internal/phash"
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

func TestMergeExactPersons(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Same person under diacritic and case variations, plus an unrelated one.
	first, _ := s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "Jana Nováková", ShortName: "Jana"})
	second, _ := s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: " jana novakova", ShortName: "JANA "})
	other, _ := s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "Petr Svoboda", ShortName: "Petr"})

	merged, err := MergeExactPersons(ctx, s)
	if err != nil {
		t.Fatalf("MergeExactPersons: %v", err)
	}
	if merged != 1 {
		t.Errorf("merged %d identities, want 1", merged)
	}

	if _, err := s.GetPerson(ctx, first); err != nil {
		t.Errorf("lowest id should survive: %v", err)
	}
	if _, err := s.GetPerson(ctx, second); err == nil {
		t.Error("duplicate should be deleted")
	}
	if _, err := s.GetPerson(ctx, other); err != nil {
		t.Errorf("unrelated person should survive: %v", err)
	}

	// Idempotent.
	merged, err = MergeExactPersons(ctx, s)
	if err != nil {
		t.Fatalf("second MergeExactPersons: %v", err)
	}
	if merged != 0 {
		t.Errorf("second run merged %d, want 0", merged)
	}
}

func TestMergeExactPersonsIgnoresUnknown(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Placeholder identities share empty names but must never be merged.
	s.CreatePerson(ctx, &catalog.Person{Known: false})
	s.CreatePerson(ctx, &catalog.Person{Known: false})

	merged, err := MergeExactPersons(ctx, s)
	if err != nil {
		t.Fatalf("MergeExactPersons: %v", err)
	}
	if merged != 0 {
		t.Errorf("merged %d placeholder identities, want 0", merged)
	}
}

func TestMergeExactSkipsBlankNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Two distinct known persons who never got a name typed in. A shared
	// blank is not a shared identity.
	blank1, _ := s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "", ShortName: ""})
	blank2, _ := s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "  ", ShortName: ""})

	merged, err := MergeExactPersons(ctx, s)
	if err != nil {
		t.Fatalf("MergeExactPersons: %v", err)
	}
	if merged != 0 {
		t.Errorf("merged %d blank-named persons, want 0", merged)
	}
	for _, id := range []int64{blank1, blank2} {
		if _, err := s.GetPerson(ctx, id); err != nil {
			t.Errorf("blank-named person %d should survive: %v", id, err)
		}
	}

	s.CreateDog(ctx, &catalog.Dog{Known: true, Name: "", Breed: "Husky"})
	s.CreateDog(ctx, &catalog.Dog{Known: true, Name: " ", Breed: "Husky"})
	merged, err = MergeExactDogs(ctx, s)
	if err != nil {
		t.Fatalf("MergeExactDogs: %v", err)
	}
	if merged != 0 {
		t.Errorf("merged %d nameless dogs, want 0", merged)
	}
}

func TestMergeExactDogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	keep, _ := s.CreateDog(ctx, &catalog.Dog{Known: true, Name: "Rex", Breed: "Labrador", Owner: "Karel"})
	s.CreateDog(ctx, &catalog.Dog{Known: true, Name: "REX ", Breed: "labrador", Owner: " karel"})
	s.CreateDog(ctx, &catalog.Dog{Known: true, Name: "Rex", Breed: "Husky", Owner: "Karel"})

	merged, err := MergeExactDogs(ctx, s)
	if err != nil {
		t.Fatalf("MergeExactDogs: %v", err)
	}
	if merged != 1 {
		t.Errorf("merged %d dogs, want 1 (breed differs on the third)", merged)
	}
	if _, err := s.GetDog(ctx, keep); err != nil {
		t.Errorf("lowest id should survive: %v", err)
	}
}

func TestGroupHashesTransitive(t *testing.T) {
	// A~B and B~C are within the threshold, A~C is not; greedy expansion
	// still puts all three in one cluster. D is far from everything.
	a := phash.Hash(0x0)
	b := phash.Hash(0x1)
	c := phash.Hash(0xF)
	d := phash.Hash(0xFF00)

	clusters := GroupHashes([]phash.Hash{a, b, c, d}, 3)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2: %v", len(clusters), clusters)
	}
	if len(clusters[0]) != 3 {
		t.Errorf("first cluster has %d members, want 3 (transitive A-B-C)", len(clusters[0]))
	}
	if len(clusters[1]) != 1 || clusters[1][0] != d {
		t.Errorf("second cluster = %v, want singleton D", clusters[1])
	}
}

func writeJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	data, err := imaging.EncodeJPEG(img, 90)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func flatImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.Gray{Y: 128})
		}
	}
	return img
}

func gradientImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.Gray{Y: uint8(x * 4)})
		}
	}
	return img
}

func TestFindDuplicatePhotos(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	aPath := filepath.Join(dir, "a.jpg")
	bPath := filepath.Join(dir, "b.jpg")
	cPath := filepath.Join(dir, "c.jpg")
	writeJPEG(t, aPath, flatImage())
	writeJPEG(t, bPath, flatImage())
	writeJPEG(t, cPath, gradientImage())

	for _, p := range []string{aPath, bPath, cPath, filepath.Join(dir, "missing.jpg")} {
		if _, err := s.InsertImage(ctx, &catalog.Image{Filename: filepath.Base(p), Filepath: p}); err != nil {
			t.Fatalf("InsertImage: %v", err)
		}
	}

	visited := 0
	groups, err := FindDuplicatePhotos(ctx, s, 0, func() { visited++ })
	if err != nil {
		t.Fatalf("FindDuplicatePhotos: %v", err)
	}
	if visited != 4 {
		t.Errorf("progress called %d times, want 4", visited)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1: %+v", len(groups), groups)
	}
	if len(groups[0].Images) != 2 {
		t.Fatalf("group has %d images, want the two identical ones", len(groups[0].Images))
	}
	for _, img := range groups[0].Images {
		if img.Filepath == cPath {
			t.Error("the distinct image should not join the group")
		}
	}
}

func TestDeletePhotosRemovesRowsAndFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	aPath := filepath.Join(dir, "dup-a.jpg")
	bPath := filepath.Join(dir, "dup-b.jpg")
	writeJPEG(t, aPath, flatImage())
	writeJPEG(t, bPath, flatImage())
	aID, _ := s.InsertImage(ctx, &catalog.Image{Filename: "dup-a.jpg", Filepath: aPath})
	bID, _ := s.InsertImage(ctx, &catalog.Image{Filename: "dup-b.jpg", Filepath: bPath})

	selected := []catalog.Image{{ID: aID, Filepath: aPath}, {ID: bID, Filepath: bPath}}
	if err := DeletePhotos(ctx, s, selected, true); err != nil {
		t.Fatalf("DeletePhotos: %v", err)
	}
	for _, p := range []string{aPath, bPath} {
		if _, err := s.GetImageByPath(ctx, p); err == nil {
			t.Errorf("image row for %s should be deleted", p)
		}
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("file %s should be removed", p)
		}
	}
}

func seedEncodings(t *testing.T, s *catalog.Store, personID int64, vectors ...[]float32) {
	t.Helper()
	ctx := context.Background()
	imageID, err := s.InsertImage(ctx, &catalog.Image{Filename: "seed.jpg", Filepath: "/photos/seed.jpg"})
	if err != nil {
		t.Fatalf("InsertImage: %v", err)
	}
	for _, v := range vectors {
		if _, err := s.InsertFaceEncoding(ctx, &catalog.FaceEncoding{
			PersonID: personID, ImageID: imageID, Encoding: v,
		}); err != nil {
			t.Fatalf("InsertFaceEncoding: %v", err)
		}
	}
}

func TestFindSimilarIdentities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	near1, _ := s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "A. Dvorak"})
	near2, _ := s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "Antonin Dvorak"})
	far, _ := s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "Bedrich Smetana"})
	s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "No Encodings"})

	// near1 averages to [0.5, 0.5], near2 sits 0.1 away, far well beyond.
	seedEncodings(t, s, near1, []float32{1, 0}, []float32{0, 1})
	seedEncodings(t, s, near2, []float32{0.5, 0.6})
	seedEncodings(t, s, far, []float32{5, 5})

	pairs, err := FindSimilarIdentities(ctx, s, 0.5)
	if err != nil {
		t.Fatalf("FindSimilarIdentities: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1: %+v", len(pairs), pairs)
	}
	if pairs[0].A.ID != near1 || pairs[0].B.ID != near2 {
		t.Errorf("pair = (%d, %d), want (%d, %d)", pairs[0].A.ID, pairs[0].B.ID, near1, near2)
	}
	if pairs[0].Distance >= 0.5 {
		t.Errorf("distance = %v, want below the threshold", pairs[0].Distance)
	}
}

func TestMergeIdentitiesKeepsLowerID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Create filler rows so the ids differ from insert order assumptions.
	for i := 0; i < 2; i++ {
		s.CreatePerson(ctx, &catalog.Person{Known: false})
	}
	low, _ := s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "Low"})
	high, _ := s.CreatePerson(ctx, &catalog.Person{Known: true, FullName: "High"})
	seedEncodings(t, s, high, []float32{1, 2})

	// The human favored the higher id's fields; the lower id still survives.
	kept, err := MergeIdentities(ctx, s, high, low, catalog.Person{FullName: "High", ShortName: "H"})
	if err != nil {
		t.Fatalf("MergeIdentities: %v", err)
	}
	if kept != low {
		t.Errorf("kept = %d, want the lower id %d", kept, low)
	}

	survivor, err := s.GetPerson(ctx, low)
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}
	if survivor.FullName != "High" {
		t.Errorf("survivor fields = %+v, want the adjudicated ones", survivor)
	}
	encodings, _ := s.ListEncodingsForPerson(ctx, low)
	if len(encodings) != 1 {
		t.Errorf("survivor has %d encodings, want the repointed one", len(encodings))
	}

	if _, err := MergeIdentities(ctx, s, low, low, catalog.Person{}); err == nil {
		t.Error("self-merge should fail")
	}
}
