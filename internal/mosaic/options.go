package mosaic

import "fmt"

// Tier selects how densely the target is divided into cells.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// densityFor maps a tier to its pixels-per-tile divisor. The planned
// tile count for a tier is ceil(outputPixels / density).
func densityFor(tier Tier) (int, error) {
	switch tier {
	case TierLow:
		return 2500, nil
	case TierMedium:
		return 1200, nil
	case TierHigh:
		return 400, nil
	default:
		return 0, fmt.Errorf("unknown resolution tier %q", tier)
	}
}

// Tiers lists every resolution tier, sparsest first.
var Tiers = []Tier{TierLow, TierMedium, TierHigh}

// TileCountFor returns the tile count the tier formula plans for an
// output of the given dimensions: ceil(outputPixels / density), at
// least 1. This is also the pool size a duplicate-free mosaic needs.
func TileCountFor(tier Tier, outputWidth, outputHeight int) (int, error) {
	density, err := densityFor(tier)
	if err != nil {
		return 0, err
	}
	pixels := outputWidth * outputHeight
	count := (pixels + density - 1) / density
	if count < 1 {
		count = 1
	}
	return count, nil
}

// Options controls a single mosaic generation.
type Options struct {
	// Tier picks the tile density when ExactTileCount and UseAllTiles
	// are unset.
	Tier Tier `json:"tier"`

	// ExactTileCount, when > 0, overrides the tier formula with an
	// explicit desired cell count.
	ExactTileCount int `json:"exact_tile_count,omitempty"`

	// UseAllTiles targets one cell per pooled tile.
	UseAllTiles bool `json:"use_all_tiles,omitempty"`

	// DetailMultiplier subdivides each planned cell into an NxN block.
	// Valid values are 1, 2 and 3. Zero means "pick automatically":
	// the low tier is bumped to 2 to improve perceived quality.
	DetailMultiplier int `json:"detail_multiplier,omitempty"`

	// AllowDuplicates permits one tile to cover several cells.
	AllowDuplicates bool `json:"allow_duplicates"`

	// MaxUsagePerTile caps how many cells one tile may cover when
	// duplicates are allowed. Zero derives ceil(cells/tiles)+1.
	MaxUsagePerTile int `json:"max_usage_per_tile,omitempty"`

	// AllowTinting shifts each placed tile toward its cell's color.
	AllowTinting bool `json:"allow_tinting"`

	// TintIntensity scales the tint shift, 0 (none) to 1 (full).
	TintIntensity float64 `json:"tint_intensity"`
}

// Normalize validates the options and fills derived defaults.
func (o *Options) Normalize() error {
	if o.Tier == "" {
		o.Tier = TierLow
	}
	if _, err := densityFor(o.Tier); err != nil {
		return err
	}
	switch o.DetailMultiplier {
	case 0:
		if o.Tier == TierLow {
			o.DetailMultiplier = 2
		} else {
			o.DetailMultiplier = 1
		}
	case 1, 2, 3:
	default:
		return fmt.Errorf("detail multiplier must be 1, 2 or 3, got %d", o.DetailMultiplier)
	}
	if o.TintIntensity < 0 || o.TintIntensity > 1 {
		return fmt.Errorf("tint intensity must be in [0,1], got %v", o.TintIntensity)
	}
	if o.ExactTileCount < 0 {
		return fmt.Errorf("exact tile count must be positive, got %d", o.ExactTileCount)
	}
	if o.MaxUsagePerTile < 0 {
		return fmt.Errorf("max usage per tile must be positive, got %d", o.MaxUsagePerTile)
	}
	return nil
}
