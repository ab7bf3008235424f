// Package analysis estimates how visually complex a target image is and
// recommends a tile count for it.
//
// The score combines three measurements over a small downsample of the
// image: per-channel color variance, Sobel edge-gradient density, and
// saturation spread. Busy, colorful targets score high and benefit from
// denser grids; flat targets score low and look better with fewer,
// larger tiles.
package analysis

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/pixelfield/mosaic/internal/mosaic"
)

// analysisSize is the downsample edge used for all measurements. The
// score is a coarse heuristic; 200px of context is plenty and keeps the
// pass cheap for arbitrarily large uploads.
const analysisSize = 200

// Result is the outcome of analyzing one target image.
type Result struct {
	// Score is the 0-100 complexity estimate.
	Score int `json:"score"`

	// ColorVariance is the mean per-channel standard deviation (0-255
	// scale) that fed the score.
	ColorVariance float64 `json:"color_variance"`

	// EdgeDensity is the fraction of sampled pixels lying on a strong
	// gradient, in [0, 1].
	EdgeDensity float64 `json:"edge_density"`

	// SaturationSpread is the standard deviation of HSV saturation, in
	// [0, 1].
	SaturationSpread float64 `json:"saturation_spread"`

	// RecommendedTiles maps each resolution tier to the suggested cell
	// count for the given output dimensions. Callers pick the entry for
	// the tier the user selected.
	RecommendedTiles map[mosaic.Tier]int `json:"recommended_tiles"`
}

// Analyze scores the complexity of img and recommends a tile count per
// resolution tier for an output of the given dimensions.
func Analyze(img image.Image, outputWidth, outputHeight int) *Result {
	sample := imaging.Resize(img, analysisSize, 0, imaging.Lanczos)
	if sample.Bounds().Dy() == 0 {
		sample = imaging.Resize(img, analysisSize, analysisSize, imaging.Lanczos)
	}

	variance := colorVariance(sample)
	edges := edgeDensity(sample)
	satSpread := saturationSpread(sample)

	// Weighted blend, each term normalized to 0-100. Variance saturates
	// around 80 (a full-range stddev is ~127 but real photos rarely
	// exceed 80); edge density around 35% of pixels.
	score := 0.45*math.Min(100, variance/80.0*100) +
		0.35*math.Min(100, edges/0.35*100) +
		0.20*math.Min(100, satSpread/0.35*100)

	result := &Result{
		Score:            int(math.Round(score)),
		ColorVariance:    variance,
		EdgeDensity:      edges,
		SaturationSpread: satSpread,
	}
	result.RecommendedTiles = recommendTiles(result.Score, outputWidth, outputHeight)
	return result
}

// recommendTiles builds the per-tier recommendation map.
//
// Each tier starts from its formula count for the output dimensions and
// is scaled by the complexity score: a flat image (score 0) gets half
// the formula count, a maximally busy one (score 100) gets one and a
// half times it.
func recommendTiles(score, outputWidth, outputHeight int) map[mosaic.Tier]int {
	factor := 0.5 + float64(score)/100.0
	out := make(map[mosaic.Tier]int, len(mosaic.Tiers))
	for _, tier := range mosaic.Tiers {
		base, err := mosaic.TileCountFor(tier, outputWidth, outputHeight)
		if err != nil {
			continue
		}
		count := int(math.Round(float64(base) * factor))
		if count < 1 {
			count = 1
		}
		out[tier] = count
	}
	return out
}

// colorVariance returns the mean per-channel standard deviation.
func colorVariance(img *image.NRGBA) float64 {
	bounds := img.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())
	if n == 0 {
		return 0
	}

	var sum, sumSq [3]float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		off := img.PixOffset(bounds.Min.X, y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			for c := 0; c < 3; c++ {
				v := float64(img.Pix[off+c])
				sum[c] += v
				sumSq[c] += v * v
			}
			off += 4
		}
	}

	var total float64
	for c := 0; c < 3; c++ {
		mean := sum[c] / n
		total += math.Sqrt(math.Max(0, sumSq[c]/n-mean*mean))
	}
	return total / 3
}

// edgeDensity returns the fraction of pixels whose Sobel gradient
// magnitude exceeds a fixed threshold.
func edgeDensity(img *image.NRGBA) float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	// Luminance plane, ITU-R BT.601 weights.
	lum := make([]float64, width*height)
	for y := 0; y < height; y++ {
		off := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < width; x++ {
			lum[y*width+x] = 0.299*float64(img.Pix[off]) +
				0.587*float64(img.Pix[off+1]) +
				0.114*float64(img.Pix[off+2])
			off += 4
		}
	}

	const threshold = 60.0
	edgePixels := 0
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			gx := -lum[(y-1)*width+x-1] + lum[(y-1)*width+x+1] +
				-2*lum[y*width+x-1] + 2*lum[y*width+x+1] +
				-lum[(y+1)*width+x-1] + lum[(y+1)*width+x+1]
			gy := -lum[(y-1)*width+x-1] - 2*lum[(y-1)*width+x] - lum[(y-1)*width+x+1] +
				lum[(y+1)*width+x-1] + 2*lum[(y+1)*width+x] + lum[(y+1)*width+x+1]
			if math.Sqrt(gx*gx+gy*gy) > threshold {
				edgePixels++
			}
		}
	}
	return float64(edgePixels) / float64((width-2)*(height-2))
}

// saturationSpread returns the standard deviation of HSV saturation.
func saturationSpread(img *image.NRGBA) float64 {
	bounds := img.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())
	if n == 0 {
		return 0
	}

	var sum, sumSq float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		off := img.PixOffset(bounds.Min.X, y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := colorful.Color{
				R: float64(img.Pix[off]) / 255.0,
				G: float64(img.Pix[off+1]) / 255.0,
				B: float64(img.Pix[off+2]) / 255.0,
			}
			_, s, _ := c.Hsv()
			sum += s
			sumSq += s * s
			off += 4
		}
	}
	mean := sum / n
	return math.Sqrt(math.Max(0, sumSq/n-mean*mean))
}
