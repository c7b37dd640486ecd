package geometry

import (
	"math"
	"testing"
)

func TestOverlapRatio(t *testing.T) {
	tests := []struct {
		name     string
		face     []float64
		body     []float64
		expected float64
	}{
		{
			name:     "face fully inside body",
			face:     []float64{100, 100, 150, 150},
			body:     []float64{80, 60, 200, 300},
			expected: 1.0, // intersection=2500, face area=2500
		},
		{
			name:     "face outside body",
			face:     []float64{400, 400, 450, 450},
			body:     []float64{80, 60, 200, 300},
			expected: 0.0,
		},
		{
			name:     "half of the face inside",
			face:     []float64{0, 0, 10, 10},
			body:     []float64{5, 0, 50, 50},
			expected: 0.5,
		},
		{
			name:     "degenerate face box",
			face:     []float64{10, 10, 10, 20},
			body:     []float64{0, 0, 100, 100},
			expected: 0.0,
		},
		{
			name:     "short slice",
			face:     []float64{10, 10, 20},
			body:     []float64{0, 0, 100, 100},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := OverlapRatio(tt.face, tt.body)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("OverlapRatio(%v, %v) = %v, want %v", tt.face, tt.body, result, tt.expected)
			}
		})
	}
}

func TestIntersection(t *testing.T) {
	tests := []struct {
		name     string
		bbox1    []float64
		bbox2    []float64
		expected float64
	}{
		{
			name:     "identical boxes",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{0, 0, 10, 10},
			expected: 100,
		},
		{
			name:     "no overlap",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{20, 20, 30, 30},
			expected: 0,
		},
		{
			name:     "partial overlap",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{5, 5, 15, 15},
			expected: 25,
		},
		{
			name:     "touching edges",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{10, 0, 20, 10},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Intersection(tt.bbox1, tt.bbox2)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("Intersection(%v, %v) = %v, want %v", tt.bbox1, tt.bbox2, result, tt.expected)
			}
		})
	}
}

func TestCenterContains(t *testing.T) {
	box := []float64{10, 20, 30, 40}
	x, y := Center(box)
	if x != 20 || y != 30 {
		t.Errorf("Center(%v) = (%v, %v), want (20, 30)", box, x, y)
	}
	if !Contains(box, 20, 30) {
		t.Errorf("Contains(%v, 20, 30) = false, want true", box)
	}
	if !Contains(box, 10, 20) {
		t.Errorf("Contains should include borders")
	}
	if Contains(box, 9, 30) {
		t.Errorf("Contains(%v, 9, 30) = true, want false", box)
	}
}

func TestValid(t *testing.T) {
	if Valid([]float64{0, 0, 0, 10}) {
		t.Error("zero-width box should be invalid")
	}
	if Valid(nil) {
		t.Error("nil box should be invalid")
	}
	if !Valid([]float64{1, 2, 3, 4}) {
		t.Error("well-formed box should be valid")
	}
}
