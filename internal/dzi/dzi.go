// Package dzi builds and serves a Deep Zoom (DZI) image pyramid.
//
// A pyramid is a sequence of levels 0..MaxLevel where level MaxLevel is
// the full-resolution image and each lower level halves both dimensions
// (ceiling division). Every level is sliced into 256x256 tiles extended
// by a 1-pixel overlap on interior edges, matching what Deep Zoom
// viewers expect when stitching.
//
// The builder generates all levels eagerly at build time. The whole
// pyramid costs less than 4/3 of the top level in pixels, every viewer
// request is a store lookup, and there is no deferred-generation state
// to invalidate; the trade-off is a longer build instead of first-view
// latency.
package dzi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Fixed Deep Zoom slicing parameters.
const (
	TileSize = 256
	Overlap  = 1
)

// tilePathPattern matches the "{x}_{y}.{ext}" filename component of a
// tile request.
var tilePathPattern = regexp.MustCompile(`^(\d+)_(\d+)\.`)

// Metadata describes a built pyramid.
type Metadata struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	TileSize int    `json:"tile_size"`
	Overlap  int    `json:"overlap"`
	Format   string `json:"format"`
	MaxLevel int    `json:"max_level"`
}

// MaxLevelFor returns the smallest level count such that
// 2^maxLevel >= max(width, height).
func MaxLevelFor(width, height int) int {
	longest := width
	if height > longest {
		longest = height
	}
	level := 0
	for size := 1; size < longest; size *= 2 {
		level++
	}
	return level
}

// LevelDims returns the raster dimensions of one pyramid level.
func (m Metadata) LevelDims(level int) (w, h int) {
	scale := 1 << (m.MaxLevel - level)
	return ceilDiv(m.Width, scale), ceilDiv(m.Height, scale)
}

// TileGrid returns how many tile columns and rows a level has.
func (m Metadata) TileGrid(level int) (cols, rows int) {
	w, h := m.LevelDims(level)
	return ceilDiv(w, TileSize), ceilDiv(h, TileSize)
}

// Descriptor renders the DZI XML descriptor consumed by viewers.
func (m Metadata) Descriptor() string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Image xmlns="http://schemas.microsoft.com/deepzoom/2008"
  Format="%s" Overlap="%d" TileSize="%d">
  <Size Width="%d" Height="%d"/>
</Image>`, m.Format, m.Overlap, m.TileSize, m.Width, m.Height)
}

// ParseTilePath extracts (level, x, y) from a "{level}/{x}_{y}.{ext}"
// request path.
func ParseTilePath(path string) (level, x, y int, err error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("malformed tile path %q", path)
	}
	level, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed tile level in %q", path)
	}
	m := tilePathPattern.FindStringSubmatch(parts[1])
	if m == nil {
		return 0, 0, 0, fmt.Errorf("malformed tile name %q", parts[1])
	}
	x, _ = strconv.Atoi(m[1])
	y, _ = strconv.Atoi(m[2])
	return level, x, y, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
