package phash

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// gradientImage draws a horizontal gradient with a dark block, giving the
// hash real structure to latch onto.
func gradientImage(w, h int, blockX int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			v := uint8(255 * x / w)
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	for x := blockX; x < blockX+w/4 && x < w; x++ {
		for y := h / 4; y < h/2; y++ {
			img.Set(x, y, color.RGBA{0, 0, 0, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestComputeIdenticalImages(t *testing.T) {
	data := encodePNG(t, gradientImage(64, 64, 10))

	h1, err := Compute(data)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	h2, err := Compute(data)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if h1.Distance(h2) != 0 {
		t.Errorf("identical images should hash identically, distance = %d", h1.Distance(h2))
	}
}

func TestComputeResizedImage(t *testing.T) {
	// The same content at a different resolution must stay within the
	// near-duplicate threshold.
	h1 := FromImage(gradientImage(64, 64, 10))
	h2 := FromImage(gradientImage(256, 256, 40))

	if d := h1.Distance(h2); d > 10 {
		t.Errorf("resized content distance = %d, want <= 10", d)
	}
}

func TestComputeDifferentImages(t *testing.T) {
	h1 := FromImage(gradientImage(64, 64, 5))

	// Vertical gradient instead of horizontal.
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			v := uint8(255 * y / 64)
			img.Set(x, y, color.RGBA{v, 0, 255 - v, 255})
		}
	}
	h2 := FromImage(img)

	if d := h1.Distance(h2); d <= 10 {
		t.Errorf("unrelated content distance = %d, want > 10", d)
	}
}

func TestComputeInvalidData(t *testing.T) {
	if _, err := Compute([]byte("not an image")); err == nil {
		t.Error("Compute should fail on undecodable data")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b     Hash
		expected int
	}{
		{0, 0, 0},
		{0xFFFFFFFFFFFFFFFF, 0, 64},
		{0b1010, 0b0101, 4},
		{0b1000, 0b1001, 1},
	}
	for _, tt := range tests {
		if got := tt.a.Distance(tt.b); got != tt.expected {
			t.Errorf("Distance(%x, %x) = %d, want %d", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestSimilar(t *testing.T) {
	var a, b Hash = 0b1111, 0b1100
	if !a.Similar(b, 2) {
		t.Error("hashes 2 bits apart should be similar at threshold 2")
	}
	if a.Similar(b, 1) {
		t.Error("hashes 2 bits apart should not be similar at threshold 1")
	}
}

func TestString(t *testing.T) {
	if got := Hash(0xAB).String(); got != "00000000000000ab" {
		t.Errorf("String() = %q, want %q", got, "00000000000000ab")
	}
}
