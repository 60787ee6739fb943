package detection

import (
	"bytes"
	"image"
	"math/bits"

	// Register the decoders for the photo formats the upload flow accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// dHash grid: 9 columns of 8 rows gives 64 horizontal gradient bits.
const (
	hashCols = 9
	hashRows = 8
	hashBits = 64
)

// DecodeImage decodes photo bytes using whichever registered format matches.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// HashImage computes a 64-bit difference hash of the image. The image is
// reduced to a 9x8 grayscale grid by box averaging; each bit records
// whether luminance increases left to right between adjacent cells. The
// result is robust to re-encoding and small crops.
func HashImage(img image.Image) uint64 {
	grid := luminanceGrid(img, hashCols, hashRows)

	var hash uint64
	for y := 0; y < hashRows; y++ {
		for x := 0; x < hashCols-1; x++ {
			hash <<= 1
			if grid[y][x] < grid[y][x+1] {
				hash |= 1
			}
		}
	}
	return hash
}

// HashDistance is the Hamming distance between two hashes.
func HashDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// HashSimilarity maps the Hamming distance to a 0-100 similarity score.
// Identical images score 100.
func HashSimilarity(a, b uint64) float64 {
	return 100 * float64(hashBits-HashDistance(a, b)) / float64(hashBits)
}

// luminanceGrid box-averages the image down to a cols x rows grid of
// luminance values in the 0-255 range.
func luminanceGrid(img image.Image, cols, rows int) [][]float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	grid := make([][]float64, rows)
	for y := range grid {
		grid[y] = make([]float64, cols)
	}
	if w == 0 || h == 0 {
		return grid
	}

	for gy := 0; gy < rows; gy++ {
		y0 := bounds.Min.Y + gy*h/rows
		y1 := bounds.Min.Y + (gy+1)*h/rows
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for gx := 0; gx < cols; gx++ {
			x0 := bounds.Min.X + gx*w/cols
			x1 := bounds.Min.X + (gx+1)*w/cols
			if x1 <= x0 {
				x1 = x0 + 1
			}

			var sum float64
			var n int
			for y := y0; y < y1 && y < bounds.Max.Y; y++ {
				for x := x0; x < x1 && x < bounds.Max.X; x++ {
					sum += luminance(img.At(x, y).RGBA())
					n++
				}
			}
			if n > 0 {
				grid[gy][gx] = sum / float64(n)
			}
		}
	}
	return grid
}

// luminance converts 16-bit premultiplied RGBA channels to a 0-255
// Rec. 601 luma value.
func luminance(r, g, b, _ uint32) float64 {
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257
}
