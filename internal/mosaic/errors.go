package mosaic

import (
	"errors"
	"fmt"
)

// Fatal precondition errors. These abort a generation before any
// compositing work begins; the caller sees them verbatim.
var (
	// ErrNoTarget means no target image has been uploaded.
	ErrNoTarget = errors.New("no target image uploaded")

	// ErrNoTiles means the tile pool is empty.
	ErrNoTiles = errors.New("no tile images uploaded")
)

// InsufficientTilesError reports that a duplicate-free mosaic needs more
// tiles than the pool holds.
type InsufficientTilesError struct {
	Needed int
	Have   int
}

func (e *InsufficientTilesError) Error() string {
	return fmt.Sprintf("insufficient tiles: need %d, have %d (enable duplicates or upload more tiles)",
		e.Needed, e.Have)
}
