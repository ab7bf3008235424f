package mosaic

import (
	"image"
	"image/draw"
	"math"
	"runtime"
	"sync"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"

	"github.com/pixelfield/mosaic/internal/colorspace"
)

// batchSize bounds how many resized tiles are held in memory at once
// during compositing. Each prepared tile is at most one cell large, so
// peak overhead stays around batchSize cells regardless of grid size.
const batchSize = 64

// tintThreshold is the minimum Lab-space shift magnitude worth applying.
// Below it the adjustment is imperceptible and skipped.
const tintThreshold = 1.0

// Composite renders every assignment onto a blank canvas of the given
// output dimensions and returns the finished mosaic.
//
// Assignments are processed in fixed-size batches: each batch's tiles
// are cover-fitted (and tinted, when enabled) on a bounded worker pool,
// then pasted sequentially onto the running canvas before the next batch
// starts. Cell origins are floored only here, at paste time.
func Composite(assignments []Assignment, outputWidth, outputHeight int, opts Options) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, outputWidth, outputHeight))

	workers := runtime.NumCPU()
	if workers > batchSize {
		workers = batchSize
	}

	prepared := make([]*image.NRGBA, batchSize)
	for start := 0; start < len(assignments); start += batchSize {
		end := start + batchSize
		if end > len(assignments) {
			end = len(assignments)
		}
		batch := assignments[start:end]

		var wg sync.WaitGroup
		sem := make(chan struct{}, workers)
		for i := range batch {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				prepared[i] = prepareTile(batch[i], opts)
			}(i)
		}
		wg.Wait()

		for i, a := range batch {
			x := int(math.Floor(a.Cell.X))
			y := int(math.Floor(a.Cell.Y))
			tile := prepared[i]
			r := tile.Bounds().Add(image.Pt(x, y))
			draw.Draw(canvas, r, tile, tile.Bounds().Min, draw.Src)
			prepared[i] = nil
		}
	}
	return canvas
}

// prepareTile fits a tile thumbnail to its cell and applies tinting.
//
// The fit is a "cover": the thumbnail is scaled to fill the cell
// completely and center-cropped, never letterboxed.
func prepareTile(a Assignment, opts Options) *image.NRGBA {
	w := cellSpan(a.Cell.X, a.Cell.Width)
	h := cellSpan(a.Cell.Y, a.Cell.Height)
	fitted := imaging.Fill(a.Tile.Thumb, w, h, imaging.Center, imaging.Lanczos)

	if opts.AllowTinting && opts.TintIntensity > 0 {
		tint(fitted, a.Tile.AvgColor, a.Cell.Color, opts.TintIntensity)
	}
	return fitted
}

// cellSpan converts a fractional origin and width into the integer pixel
// span the cell occupies, so adjacent cells never leave a gap.
func cellSpan(origin, size float64) int {
	span := int(math.Floor(origin+size)) - int(math.Floor(origin))
	if span < 1 {
		span = 1
	}
	return span
}

// tint shifts an image's color toward the cell's target color in place.
//
// The Lab delta between target and tile average is scaled by intensity;
// its lightness component becomes a brightness multiplier and its a/b
// components become an RGB overlay blended onto every pixel. Row loops
// run in parallel; all pixels share one delta so there are no cross-row
// dependencies.
func tint(img *image.NRGBA, tileColor, targetColor colorspace.Lab, intensity float64) {
	dL := (targetColor.L - tileColor.L) * intensity
	dA := (targetColor.A - tileColor.A) * intensity
	dB := (targetColor.B - tileColor.B) * intensity

	if math.Abs(dL)+math.Abs(dA)+math.Abs(dB) < tintThreshold {
		return
	}

	brightness := 1.0 + dL/100.0*0.5
	overlayR, overlayG, overlayB := colorspace.LabToRGB(colorspace.Lab{
		L: 50 + 2*dL,
		A: 2 * dA,
		B: 2 * dB,
	})

	// Overlay weight: how strongly the a/b shift blends in.
	weight := math.Min(1.0, (math.Abs(dA)+math.Abs(dB))/200.0*intensity+0.1)

	bounds := img.Bounds()
	width := bounds.Dx()
	parallel.Line(bounds.Dy(), func(startY, endY int) {
		for y := startY; y < endY; y++ {
			off := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			for x := 0; x < width; x++ {
				r := float64(img.Pix[off]) * brightness
				g := float64(img.Pix[off+1]) * brightness
				b := float64(img.Pix[off+2]) * brightness

				r = r*(1-weight) + float64(overlayR)*weight
				g = g*(1-weight) + float64(overlayG)*weight
				b = b*(1-weight) + float64(overlayB)*weight

				img.Pix[off] = clamp8(r)
				img.Pix[off+1] = clamp8(g)
				img.Pix[off+2] = clamp8(b)
				off += 4
			}
		}
	})
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
