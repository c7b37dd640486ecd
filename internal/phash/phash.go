// Package phash computes 64-bit DCT perceptual hashes for near-duplicate
// photo detection. Hashes are robust to recompression and resizing but
// sensitive to content changes; closeness is measured in Hamming distance.
package phash

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"math/bits"
	"sort"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// dctSize is the downsample size fed into the DCT; the hash keeps the 8x8
// low-frequency corner.
const dctSize = 32

// Hash is a 64-bit perceptual hash.
type Hash uint64

// String renders the hash as a 16-digit hex string.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Distance returns the Hamming distance to another hash.
func (h Hash) Distance(other Hash) int {
	return bits.OnesCount64(uint64(h) ^ uint64(other))
}

// Similar reports whether two hashes are within threshold Hamming bits.
func (h Hash) Similar(other Hash, threshold int) bool {
	return h.Distance(other) <= threshold
}

// Compute decodes image data and returns its perceptual hash.
func Compute(imageData []byte) (Hash, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img), nil
}

// FromImage computes the perceptual hash of a decoded image.
func FromImage(img image.Image) Hash {
	gray := downsampleGray(img, dctSize, dctSize)
	dct := dct2d(gray)

	// Collect the top-left 8x8 low-frequency coefficients, skipping the
	// DC component at (0,0).
	coeffs := make([]float64, 0, 64)
	for u := 0; u < 8; u++ {
		for v := 0; v < 8; v++ {
			if u == 0 && v == 0 {
				continue
			}
			coeffs = append(coeffs, dct[u][v])
		}
	}
	coeffs = append(coeffs, dct[8][0]) // 64th coefficient

	med := median(coeffs)

	var h uint64
	for i, c := range coeffs {
		if c > med {
			h |= 1 << (63 - i)
		}
	}
	return Hash(h)
}

// downsampleGray scales the image to width x height and converts it to
// grayscale luma values.
func downsampleGray(img image.Image, width, height int) [][]float64 {
	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)

	gray := make([][]float64, width)
	for x := 0; x < width; x++ {
		gray[x] = make([]float64, height)
		for y := 0; y < height; y++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			// ITU-R BT.601 luma.
			gray[x][y] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return gray
}

// dct2d computes the two-dimensional DCT-II of a square grayscale grid.
func dct2d(gray [][]float64) [][]float64 {
	size := len(gray)

	cosTable := make([][]float64, size)
	for i := range cosTable {
		cosTable[i] = make([]float64, size)
		for j := 0; j < size; j++ {
			cosTable[i][j] = math.Cos(math.Pi * float64(i) * (2*float64(j) + 1) / (2 * float64(size)))
		}
	}

	dct := make([][]float64, size)
	for u := range dct {
		dct[u] = make([]float64, size)
		for v := 0; v < size; v++ {
			var sum float64
			for x := 0; x < size; x++ {
				for y := 0; y < size; y++ {
					sum += gray[x][y] * cosTable[u][x] * cosTable[v][y]
				}
			}
			dct[u][v] = sum
		}
	}
	return dct
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
