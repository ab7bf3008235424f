package mosaic

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/pixelfield/mosaic/internal/colorspace"
)

// samplesPerAxis is how many sample pixels each cell contributes per
// axis when the target is downsampled for color analysis.
const samplesPerAxis = 10

// Cell is one rectangular region of the target at output scale,
// annotated with the region's average color.
type Cell struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
	Color  colorspace.Lab
}

// SampleCells computes the average color of every grid cell.
//
// The target is downsampled once to cols*K x rows*K pixels (K =
// samplesPerAxis) so each cell maps to an exact KxK block; the mean RGB
// of that block, converted to Lab, becomes the cell color. This single
// resize replaces per-cell region decoding and keeps the pass linear in
// the sample count regardless of target size.
func SampleCells(target image.Image, grid Grid) []Cell {
	sampleW := grid.Cols * samplesPerAxis
	sampleH := grid.Rows * samplesPerAxis
	sampled := imaging.Resize(target, sampleW, sampleH, imaging.Lanczos)

	cells := make([]Cell, 0, grid.CellCount())
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			cells = append(cells, Cell{
				X:      float64(col) * grid.CellWidth,
				Y:      float64(row) * grid.CellHeight,
				Width:  grid.CellWidth,
				Height: grid.CellHeight,
				Color:  blockColor(sampled, col*samplesPerAxis, row*samplesPerAxis),
			})
		}
	}
	return cells
}

// blockColor averages the KxK sample block with top-left (x0, y0).
func blockColor(img *image.NRGBA, x0, y0 int) colorspace.Lab {
	var rSum, gSum, bSum uint32
	for y := y0; y < y0+samplesPerAxis; y++ {
		for x := x0; x < x0+samplesPerAxis; x++ {
			off := img.PixOffset(x, y)
			rSum += uint32(img.Pix[off])
			gSum += uint32(img.Pix[off+1])
			bSum += uint32(img.Pix[off+2])
		}
	}
	const n = samplesPerAxis * samplesPerAxis
	return colorspace.RGBToLab(uint8(rSum/n), uint8(gSum/n), uint8(bSum/n))
}
