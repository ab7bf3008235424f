// Package mosaic implements the mosaic generation pipeline: grid
// planning, per-cell color sampling, perceptual tile matching and
// batched compositing.
//
// The stages run in a fixed order and hand plain values to each other:
//
//	PlanGrid -> SampleCells -> MatchTiles -> Composite
//
// PlanGrid decides the cols x rows layout from a resolution tier, an
// explicit tile count, or the pool size. SampleCells reduces the target
// to one average Lab color per cell in a single downsample pass.
// MatchTiles greedily assigns each cell the tile with the smallest
// CIEDE2000 distance, honoring duplicate and usage-cap constraints, and
// must stay sequential: its sorted-order, usage-counter algorithm is
// order dependent. Composite pastes cover-fitted (optionally tinted)
// tiles in bounded batches so peak memory does not grow with the grid.
//
// # Error Handling
//
// Whole-operation preconditions (empty pool, insufficient tiles for a
// duplicate-free grid) fail before any compositing work begins, with
// ErrNoTiles, ErrNoTarget or a typed InsufficientTilesError. There is no
// partial output on fatal errors.
package mosaic
