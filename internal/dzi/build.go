package dzi

import (
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/pixelfield/mosaic/internal/codec"
)

// Pyramid holds the encoded tiles of one built deep-zoom pyramid.
//
// Tiles are written once during Build and read concurrently afterwards;
// the store follows the usual RWMutex map pattern. Regenerating the
// mosaic replaces the whole Pyramid, never patches one in place.
type Pyramid struct {
	meta Metadata

	mu    sync.RWMutex
	tiles map[string][]byte
}

// Build slices img into a complete deep-zoom pyramid.
//
// Levels are derived top-down by successive halving: each level raster
// comes from resampling the previous one, so at most two level rasters
// are alive at a time. Within a level, tile crop+encode runs on a
// bounded worker pool; tiles are independent once the level raster
// exists.
//
// A failure encoding a single tile is logged and skipped. The resulting
// hole is served as "not found" rather than failing the build.
func Build(img image.Image, format string, quality int, reg *codec.Registry) (*Pyramid, error) {
	enc := reg.Get(format)
	if enc == nil {
		return nil, fmt.Errorf("no encoder for format %q", format)
	}

	bounds := img.Bounds()
	p := &Pyramid{
		meta: Metadata{
			Width:    bounds.Dx(),
			Height:   bounds.Dy(),
			TileSize: TileSize,
			Overlap:  Overlap,
			Format:   enc.Extension(),
			MaxLevel: MaxLevelFor(bounds.Dx(), bounds.Dy()),
		},
		tiles: make(map[string][]byte),
	}

	level := imaging.Clone(img)
	for l := p.meta.MaxLevel; l >= 0; l-- {
		w, h := p.meta.LevelDims(l)
		if level.Bounds().Dx() != w || level.Bounds().Dy() != h {
			level = imaging.Resize(level, w, h, imaging.Lanczos)
		}
		p.sliceLevel(l, level, enc, quality)
	}
	return p, nil
}

// sliceLevel cuts one level raster into overlapping tiles and stores
// their encoded bytes.
func (p *Pyramid) sliceLevel(level int, raster *image.NRGBA, enc codec.Encoder, quality int) {
	cols, rows := p.meta.TileGrid(level)
	levelW := raster.Bounds().Dx()
	levelH := raster.Bounds().Dy()

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4)
	for ty := 0; ty < rows; ty++ {
		for tx := 0; tx < cols; tx++ {
			wg.Add(1)
			go func(tx, ty int) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				rect := tileRect(tx, ty, levelW, levelH)
				data, err := enc.Encode(imaging.Crop(raster, rect), quality)
				if err != nil {
					log.Printf("dzi: skipping tile %d/%d_%d: %v", level, tx, ty, err)
					return
				}
				p.mu.Lock()
				p.tiles[tileKey(level, tx, ty)] = data
				p.mu.Unlock()
			}(tx, ty)
		}
	}
	wg.Wait()
}

// tileRect computes the pixel region of tile (tx, ty), extended by the
// overlap on interior edges only. The image boundary is never padded.
func tileRect(tx, ty, levelW, levelH int) image.Rectangle {
	x0 := tx * TileSize
	y0 := ty * TileSize
	x1 := x0 + TileSize
	y1 := y0 + TileSize

	if tx > 0 {
		x0 -= Overlap
	}
	if ty > 0 {
		y0 -= Overlap
	}
	x1 += Overlap
	y1 += Overlap

	if x1 > levelW {
		x1 = levelW
	}
	if y1 > levelH {
		y1 = levelH
	}
	return image.Rect(x0, y0, x1, y1)
}

// Metadata returns the pyramid's descriptor metadata.
func (p *Pyramid) Metadata() Metadata {
	return p.meta
}

// Tile returns the encoded bytes of one tile, or false when the key is
// out of range or the tile was skipped during build.
func (p *Pyramid) Tile(level, x, y int) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.tiles[tileKey(level, x, y)]
	return data, ok
}

// TileCount returns how many tiles the pyramid holds across all levels.
func (p *Pyramid) TileCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tiles)
}

// Clear drops every stored tile.
func (p *Pyramid) Clear() {
	p.mu.Lock()
	p.tiles = make(map[string][]byte)
	p.mu.Unlock()
}

func tileKey(level, x, y int) string {
	return fmt.Sprintf("%d/%d_%d", level, x, y)
}
