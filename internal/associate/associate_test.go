package associate

import "testing"

func TestAssociateFaceInsideBody(t *testing.T) {
	bodies := []Body{{Index: 0, BBox: []float64{80, 60, 200, 300}, Confidence: 0.9}}
	faces := []Face{{BBox: []float64{100, 100, 150, 150}, Embedding: []float32{1, 2}}}

	items := Associate(bodies, faces, 0.5)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Kind != BodyWithFace {
		t.Errorf("kind = %s, want %s", items[0].Kind, BodyWithFace)
	}
	if items[0].Embedding == nil {
		t.Error("matched body should carry the face embedding")
	}
}

func TestAssociateFaceOutsideBody(t *testing.T) {
	bodies := []Body{{Index: 0, BBox: []float64{80, 60, 200, 300}}}
	faces := []Face{{BBox: []float64{400, 400, 450, 450}}}

	items := Associate(bodies, faces, 0.5)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	var face, body *Item
	for i := range items {
		switch items[i].Kind {
		case FaceOnly:
			face = &items[i]
		case BodyWithoutFace:
			body = &items[i]
		}
	}
	if face == nil || body == nil {
		t.Fatalf("expected one face-only and one body-without-face item, got %+v", items)
	}
	if face.BodyIndex != -1 {
		t.Errorf("face-only body index = %d, want -1", face.BodyIndex)
	}
	if face.BBox[0] != 400 {
		t.Error("face-only item should use the face's own box")
	}
}

func TestAssociateOneFacePerBody(t *testing.T) {
	// Two faces whose centers fall inside the same body: the first face
	// claims it, the second becomes face-only.
	bodies := []Body{{Index: 0, BBox: []float64{0, 0, 200, 400}}}
	faces := []Face{
		{BBox: []float64{50, 50, 100, 100}},
		{BBox: []float64{50, 150, 100, 200}},
	}

	items := Associate(bodies, faces, 0.5)
	var withFace, faceOnly int
	for _, it := range items {
		switch it.Kind {
		case BodyWithFace:
			withFace++
			if it.FaceBBox[1] != 50 {
				t.Error("body should keep the first-claimed face")
			}
		case FaceOnly:
			faceOnly++
		}
	}
	if withFace != 1 || faceOnly != 1 {
		t.Errorf("got %d body-with-face and %d face-only, want 1 and 1", withFace, faceOnly)
	}
}

func TestAssociatePicksHighestOverlap(t *testing.T) {
	// The face center lies inside both bodies, but the first body clips
	// most of the face; the body covering more of it wins.
	bodies := []Body{
		{Index: 0, BBox: []float64{0, 0, 130, 130}},
		{Index: 1, BBox: []float64{90, 90, 160, 160}},
	}
	faces := []Face{{BBox: []float64{100, 100, 150, 150}}}

	items := Associate(bodies, faces, 0.5)
	for _, it := range items {
		switch it.BodyIndex {
		case 0:
			if it.Kind != BodyWithoutFace {
				t.Error("clipping body should not claim the face")
			}
		case 1:
			if it.Kind != BodyWithFace {
				t.Error("covering body should claim the face")
			}
		}
	}
}

func TestAssociateDropsDegenerateBoxes(t *testing.T) {
	bodies := []Body{{Index: 0, BBox: []float64{10, 10, 10, 50}}} // zero width
	faces := []Face{{BBox: []float64{0, 0, 0, 0}}}

	if items := Associate(bodies, faces, 0.5); len(items) != 0 {
		t.Errorf("degenerate boxes should be dropped, got %+v", items)
	}
}

func TestSortWorklist(t *testing.T) {
	items := []Item{
		{Kind: BodyWithoutFace, BBox: []float64{0, 0, 1000, 1000}},
		{Kind: FaceOnly, BBox: []float64{0, 0, 10, 10}, FaceBBox: []float64{0, 0, 10, 10}},
		{Kind: BodyWithFace, BBox: []float64{0, 0, 50, 50}, FaceBBox: []float64{0, 0, 30, 30}},
		{Kind: BodyWithoutFace, BBox: []float64{0, 0, 20, 20}},
	}

	SortWorklist(items)

	wantKinds := []Kind{BodyWithFace, FaceOnly, BodyWithoutFace, BodyWithoutFace}
	for i, want := range wantKinds {
		if items[i].Kind != want {
			t.Errorf("items[%d].Kind = %s, want %s", i, items[i].Kind, want)
		}
	}
	// Faced items sort by face area (30x30 before 10x10), bodies by body
	// area (1000x1000 before 20x20), even though the huge body dwarfs
	// every face.
	if items[2].BBox[2] != 1000 {
		t.Error("larger body should sort before smaller body")
	}
}
