package mosaic

import "math"

// Grid is the planned cell layout for one mosaic at output scale.
type Grid struct {
	Cols int
	Rows int

	// CellWidth and CellHeight are the exact (fractional) cell
	// dimensions in output pixels. They are floored only at render time
	// so accumulated placement error never exceeds one pixel.
	CellWidth  float64
	CellHeight float64

	// Multiplier is the detail multiplier that was applied to Cols and
	// Rows.
	Multiplier int
}

// CellCount returns the total number of cells in the grid.
func (g Grid) CellCount() int {
	return g.Cols * g.Rows
}

// PlanGrid decides the cols x rows layout for a mosaic.
//
// The base tile count comes from, in priority order: opts.ExactTileCount,
// opts.UseAllTiles (one cell per pooled tile), or the tier density
// formula ceil(outputPixels / density). The initial estimate
//
//	cols = round(sqrt(tileCount * aspect))
//	rows = round(tileCount / cols)
//
// is then refined by scanning cols±2 x rows±2 for the pair whose product
// is closest to the requested count (first found wins on ties). The
// detail multiplier scales both axes afterwards, squaring the cell count.
//
// When duplicates are disallowed and no detail multiplier is active, the
// pool must hold at least one tile per cell; otherwise PlanGrid fails
// with an InsufficientTilesError naming the deficit.
func PlanGrid(outputWidth, outputHeight, poolSize int, opts Options) (Grid, error) {
	tileCount := opts.ExactTileCount
	if tileCount == 0 && opts.UseAllTiles {
		tileCount = poolSize
	}
	if tileCount == 0 {
		var err error
		tileCount, err = TileCountFor(opts.Tier, outputWidth, outputHeight)
		if err != nil {
			return Grid{}, err
		}
	}
	if tileCount < 1 {
		tileCount = 1
	}

	aspect := float64(outputWidth) / float64(outputHeight)
	cols, rows := fitGrid(tileCount, aspect)

	cols *= opts.DetailMultiplier
	rows *= opts.DetailMultiplier

	if !opts.AllowDuplicates && opts.DetailMultiplier == 1 && poolSize < cols*rows {
		return Grid{}, &InsufficientTilesError{Needed: cols * rows, Have: poolSize}
	}

	return Grid{
		Cols:       cols,
		Rows:       rows,
		CellWidth:  float64(outputWidth) / float64(cols),
		CellHeight: float64(outputHeight) / float64(rows),
		Multiplier: opts.DetailMultiplier,
	}, nil
}

// fitGrid finds the integer cols x rows pair near the aspect-preserving
// estimate whose product best matches tileCount.
func fitGrid(tileCount int, aspect float64) (cols, rows int) {
	cols = int(math.Round(math.Sqrt(float64(tileCount) * aspect)))
	if cols < 1 {
		cols = 1
	}
	rows = int(math.Round(float64(tileCount) / float64(cols)))
	if rows < 1 {
		rows = 1
	}

	bestCols, bestRows := cols, rows
	bestDiff := absInt(cols*rows - tileCount)

	for dc := -2; dc <= 2; dc++ {
		for dr := -2; dr <= 2; dr++ {
			c := cols + dc
			r := rows + dr
			if c < 1 || r < 1 {
				continue
			}
			if diff := absInt(c*r - tileCount); diff < bestDiff {
				bestCols, bestRows = c, r
				bestDiff = diff
			}
		}
	}
	return bestCols, bestRows
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
