// Package pool manages the set of candidate tile images for a mosaic.
//
// Tiles are added as raw encoded bytes, decoded once, reduced to a small
// thumbnail and an average Lab color, and kept immutable afterwards. The
// pool is safe for concurrent reads; adds and clears take the write lock,
// so an upload never mutates the tile list under a running generation.
package pool

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	"sync"

	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/anthonynsimon/bild/transform"
	"github.com/cespare/xxhash/v2"

	"github.com/pixelfield/mosaic/internal/colorspace"
)

// ThumbSize is the edge length of the square thumbnail kept per tile.
// Tiles are re-fit to their cell dimensions at composite time, so the
// thumbnail only has to carry enough detail for cells a few hundred
// pixels across.
const ThumbSize = 128

// Tile is one candidate image in the pool.
//
// A Tile is created once on upload and never modified: the matcher and
// compositor read AvgColor and Thumb concurrently without locking.
type Tile struct {
	// ID is the xxHash64 of the original encoded bytes, as 16 hex chars.
	// Re-uploading identical bytes yields the same ID and is deduplicated.
	ID string

	// Thumb is the decoded tile reduced to ThumbSize x ThumbSize.
	Thumb *image.RGBA

	// AvgColor is the mean color of the full decoded tile.
	AvgColor colorspace.Lab

	// Width and Height are the dimensions of the original upload.
	Width  int
	Height int
}

// Pool is a mutable collection of tiles owned by one session.
type Pool struct {
	mu    sync.RWMutex
	tiles []Tile
	byID  map[string]struct{}
}

// New creates an empty tile pool.
func New() *Pool {
	return &Pool{byID: make(map[string]struct{})}
}

// Add decodes one uploaded tile and appends it to the pool.
//
// A tile whose bytes match an already-pooled tile is silently ignored
// (same content hash). Decode failures are returned to the caller, which
// treats them as per-item errors: the tile is skipped, the upload as a
// whole continues.
func (p *Pool) Add(data []byte) (*Tile, error) {
	id := contentID(data)

	p.mu.RLock()
	_, dup := p.byID[id]
	p.mu.RUnlock()
	if dup {
		return nil, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}

	bounds := img.Bounds()
	tile := Tile{
		ID:       id,
		Thumb:    transform.Resize(img, ThumbSize, ThumbSize, transform.Linear),
		AvgColor: averageColor(img),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.byID[id]; dup {
		return nil, nil
	}
	p.byID[id] = struct{}{}
	p.tiles = append(p.tiles, tile)
	return &tile, nil
}

// List returns a snapshot of the pooled tiles in insertion order.
func (p *Pool) List() []Tile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Tile, len(p.tiles))
	copy(out, p.tiles)
	return out
}

// Count returns the number of tiles currently pooled.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tiles)
}

// Clear removes every tile from the pool.
func (p *Pool) Clear() {
	p.mu.Lock()
	p.tiles = nil
	p.byID = make(map[string]struct{})
	p.mu.Unlock()
}

// contentID computes the xxHash64 of data as a 16-char hex string.
func contentID(data []byte) string {
	sum := xxhash.Sum64(data)
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(sum >> (56 - 8*i))
	}
	return hex.EncodeToString(b[:])
}

// averageColor computes the mean RGB of an image and converts it to Lab.
func averageColor(img image.Image) colorspace.Lab {
	bounds := img.Bounds()
	count := uint64(bounds.Dx()) * uint64(bounds.Dy())
	if count == 0 {
		return colorspace.Lab{}
	}
	var rSum, gSum, bSum uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += uint64(r >> 8)
			gSum += uint64(g >> 8)
			bSum += uint64(b >> 8)
		}
	}
	return colorspace.RGBToLab(
		uint8(rSum/count),
		uint8(gSum/count),
		uint8(bSum/count),
	)
}
