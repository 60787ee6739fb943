package detection

import (
	"image"

	"github.com/montanaflynn/stats"

	"urbanfix-be/models"
)

// Sampling and scoring constants for the quality heuristics. The grid is
// small enough to keep classification cheap on large uploads while still
// separating flat screenshots from real field photos.
const (
	qualityGridSize = 32

	darkLumaCutoff     = 60.0  // mean luminance below which a photo trends TOO_DARK
	sharpnessCutoff    = 120.0 // Laplacian variance below which a photo trends BLURRY
	dominantShareFloor = 0.45  // dominant quantized color share above which a photo trends NON_SUBSTANTIVE
)

// ClassifyImage scores one decoded photo against the three quality
// signals and returns a flag per signal whose confidence crosses
// minConfidence. A photo can carry several flags at once.
func ClassifyImage(img image.Image, photoURL string, minConfidence float64) []models.QualityFlag {
	grid := luminanceGrid(img, qualityGridSize, qualityGridSize)

	var flags []models.QualityFlag
	appendFlag := func(reason models.QualityReason, confidence float64) {
		if confidence >= minConfidence {
			flags = append(flags, models.QualityFlag{
				Photo:      photoURL,
				Reason:     reason,
				Confidence: confidence,
			})
		}
	}

	appendFlag(models.ReasonTooDark, darknessConfidence(grid))
	appendFlag(models.ReasonBlurry, blurConfidence(grid))
	appendFlag(models.ReasonNonSubstantive, nonSubstantiveConfidence(img))
	return flags
}

// darknessConfidence grows as the mean luminance falls below the cutoff.
func darknessConfidence(grid [][]float64) float64 {
	samples := flatten(grid)
	mean, err := stats.Mean(samples)
	if err != nil {
		return 0
	}
	return clamp01((darkLumaCutoff - mean) / darkLumaCutoff)
}

// blurConfidence uses the classic variance-of-Laplacian sharpness
// measure: in-focus photos have high local contrast, blurred ones do not.
func blurConfidence(grid [][]float64) float64 {
	rows := len(grid)
	if rows < 3 {
		return 0
	}
	cols := len(grid[0])

	var responses []float64
	for y := 1; y < rows-1; y++ {
		for x := 1; x < cols-1; x++ {
			lap := 4*grid[y][x] - grid[y-1][x] - grid[y+1][x] - grid[y][x-1] - grid[y][x+1]
			responses = append(responses, lap)
		}
	}
	variance, err := stats.Variance(responses)
	if err != nil {
		return 0
	}
	return clamp01((sharpnessCutoff - variance) / sharpnessCutoff)
}

// nonSubstantiveConfidence grows with the share of the image covered by a
// single quantized color. Screenshots and accidental uploads of flat
// content are dominated by one background color in a way street scenes
// are not.
func nonSubstantiveConfidence(img image.Image) float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	stepX, stepY := w/qualityGridSize, h/qualityGridSize
	if stepX < 1 {
		stepX = 1
	}
	if stepY < 1 {
		stepY = 1
	}

	counts := make(map[uint32]int)
	total, dominant := 0, 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			// 4 bits per channel is coarse enough to absorb jpeg noise.
			key := (r >> 12 << 8) | (g >> 12 << 4) | (b >> 12)
			counts[key]++
			total++
			if counts[key] > dominant {
				dominant = counts[key]
			}
		}
	}
	if total == 0 {
		return 0
	}
	share := float64(dominant) / float64(total)
	return clamp01((share - dominantShareFloor) / (1 - dominantShareFloor))
}

func flatten(grid [][]float64) []float64 {
	out := make([]float64, 0, len(grid)*len(grid))
	for _, row := range grid {
		out = append(out, row...)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
