package mosaic

import (
	"math"
	"sort"

	"github.com/pixelfield/mosaic/internal/colorspace"
	"github.com/pixelfield/mosaic/internal/pool"
)

// Assignment pairs one grid cell with the tile chosen to cover it.
type Assignment struct {
	Cell Cell
	Tile pool.Tile
}

// extremity measures how far a color sits from neutral gray. Cells with
// extreme colors are the hardest to substitute, so the matcher handles
// them first while the full pool is still available.
func extremity(c colorspace.Lab) float64 {
	return math.Abs(c.L-50) + math.Abs(c.A) + math.Abs(c.B)
}

// usageCap returns the maximum number of cells a single tile may cover.
func usageCap(cellCount, tileCount int, opts Options) int {
	if !opts.AllowDuplicates {
		return 1
	}
	if opts.MaxUsagePerTile > 0 {
		return opts.MaxUsagePerTile
	}
	return (cellCount+tileCount-1)/tileCount + 1
}

// MatchTiles assigns the perceptually nearest tile to every cell.
//
// Cells are processed in descending extremity order. Usage is tracked in
// an explicit map local to this call, never in package state, so the
// algorithm is deterministic and re-runnable. A tile leaves the active
// pool once it reaches the usage cap.
//
// Pool exhaustion is handled asymmetrically on purpose:
//
//   - duplicates allowed: all usage counters reset and the full pool is
//     reconsidered for the current cell;
//   - duplicates disallowed: the first tile of the pool is reused as a
//     fallback. The planner's pool-size validation makes this branch
//     unreachable in practice, but the behavior is kept rather than
//     turned into a panic.
//
// Every cell receives exactly one assignment. Callers must not pass an
// empty tile slice; that precondition is checked upstream (ErrNoTiles).
func MatchTiles(cells []Cell, tiles []pool.Tile, opts Options) []Assignment {
	ordered := make([]Cell, len(cells))
	copy(ordered, cells)
	sort.SliceStable(ordered, func(i, j int) bool {
		return extremity(ordered[i].Color) > extremity(ordered[j].Color)
	})

	maxUse := usageCap(len(cells), len(tiles), opts)
	usage := make(map[string]int, len(tiles))

	// active holds indexes into tiles that are still under the cap.
	active := make([]int, len(tiles))
	for i := range tiles {
		active[i] = i
	}

	assignments := make([]Assignment, 0, len(ordered))
	for _, cell := range ordered {
		if len(active) == 0 {
			if opts.AllowDuplicates {
				// Exhausted: reset usage and reconsider everything.
				usage = make(map[string]int, len(tiles))
				active = active[:0]
				for i := range tiles {
					active = append(active, i)
				}
			} else {
				assignments = append(assignments, Assignment{Cell: cell, Tile: tiles[0]})
				usage[tiles[0].ID]++
				continue
			}
		}

		bestPos := 0
		bestDist := colorspace.DeltaE2000(cell.Color, tiles[active[0]].AvgColor)
		for pos := 1; pos < len(active); pos++ {
			d := colorspace.DeltaE2000(cell.Color, tiles[active[pos]].AvgColor)
			if d < bestDist {
				bestDist = d
				bestPos = pos
			}
		}

		idx := active[bestPos]
		tile := tiles[idx]
		assignments = append(assignments, Assignment{Cell: cell, Tile: tile})

		usage[tile.ID]++
		if usage[tile.ID] >= maxUse {
			active = append(active[:bestPos], active[bestPos+1:]...)
		}
	}
	return assignments
}
