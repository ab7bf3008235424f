// Package engine orchestrates a full mosaic generation: grid planning,
// cell sampling, tile matching, compositing, output encoding and
// deep-zoom pyramid construction.
package engine

import (
	"fmt"
	"image"

	"github.com/pixelfield/mosaic/internal/codec"
	"github.com/pixelfield/mosaic/internal/dzi"
	"github.com/pixelfield/mosaic/internal/mosaic"
	"github.com/pixelfield/mosaic/internal/pool"
)

// Result is the outcome of one successful generation.
type Result struct {
	// MosaicPNG is the finished mosaic encoded as PNG.
	MosaicPNG []byte

	// Pyramid is the deep-zoom pyramid built from the mosaic.
	Pyramid *dzi.Pyramid

	// Metadata describes the pyramid for the DZI descriptor.
	Metadata dzi.Metadata

	// Grid is the cell layout that was used.
	Grid mosaic.Grid
}

// Generator runs mosaic generations. It is stateless apart from the
// encoder registry and safe to share across sessions.
type Generator struct {
	codecs *codec.Registry

	// TileFormat and TileQuality control per-tile pyramid encoding.
	TileFormat  string
	TileQuality int
}

// New creates a Generator with JPEG pyramid tiles at quality 85.
func New() *Generator {
	return &Generator{
		codecs:      codec.NewRegistry(),
		TileFormat:  "jpeg",
		TileQuality: 85,
	}
}

// Generate builds a mosaic of the given output dimensions from target
// and the pooled tiles.
//
// Preconditions are checked before any compositing work: a missing
// target fails with mosaic.ErrNoTarget, an empty pool with
// mosaic.ErrNoTiles, and a duplicate-free grid larger than the pool
// with a mosaic.InsufficientTilesError. On success the caller receives
// the complete mosaic plus pyramid; there is no partial output on error.
func (g *Generator) Generate(target image.Image, tiles []pool.Tile, outputWidth, outputHeight int, opts mosaic.Options) (*Result, error) {
	if target == nil {
		return nil, mosaic.ErrNoTarget
	}
	if len(tiles) == 0 {
		return nil, mosaic.ErrNoTiles
	}
	if outputWidth < 1 || outputHeight < 1 {
		return nil, fmt.Errorf("invalid output dimensions %dx%d", outputWidth, outputHeight)
	}
	if err := opts.Normalize(); err != nil {
		return nil, err
	}

	grid, err := mosaic.PlanGrid(outputWidth, outputHeight, len(tiles), opts)
	if err != nil {
		return nil, err
	}

	cells := mosaic.SampleCells(target, grid)
	assignments := mosaic.MatchTiles(cells, tiles, opts)
	canvas := mosaic.Composite(assignments, outputWidth, outputHeight, opts)

	encoded, err := codec.PNGEncoder{}.Encode(canvas, 0)
	if err != nil {
		return nil, fmt.Errorf("encode mosaic: %w", err)
	}

	pyramid, err := dzi.Build(canvas, g.TileFormat, g.TileQuality, g.codecs)
	if err != nil {
		return nil, fmt.Errorf("build pyramid: %w", err)
	}

	return &Result{
		MosaicPNG: encoded,
		Pyramid:   pyramid,
		Metadata:  pyramid.Metadata(),
		Grid:      grid,
	}, nil
}
