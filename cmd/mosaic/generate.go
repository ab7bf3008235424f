package main

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pixelfield/mosaic/internal/engine"
	"github.com/pixelfield/mosaic/internal/mosaic"
	"github.com/pixelfield/mosaic/internal/pool"
)

var (
	genTarget     string
	genTilesDir   string
	genOut        string
	genWidth      int
	genHeight     int
	genTier       string
	genTileCount  int
	genDetail     int
	genDuplicates bool
	genMaxUsage   int
	genTint       bool
	genIntensity  float64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a mosaic and its Deep Zoom tree on disk",
	Long: `Builds a mosaic from --target and every image under --tiles, then
writes mosaic.png, mosaic.dzi and a mosaic_files/{level}/{x}_{y}.jpg
tree under --out, ready for any Deep Zoom viewer.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genTarget, "target", "", "target image file (required)")
	generateCmd.Flags().StringVar(&genTilesDir, "tiles", "", "directory of tile images (required)")
	generateCmd.Flags().StringVar(&genOut, "out", "mosaic-out", "output directory")
	generateCmd.Flags().IntVar(&genWidth, "width", 0, "output width (default: target width)")
	generateCmd.Flags().IntVar(&genHeight, "height", 0, "output height (default: target height)")
	generateCmd.Flags().StringVar(&genTier, "tier", "medium", "resolution tier: low, medium or high")
	generateCmd.Flags().IntVar(&genTileCount, "tile-count", 0, "explicit tile count (overrides --tier)")
	generateCmd.Flags().IntVar(&genDetail, "detail", 0, "detail multiplier 1-3 (0 = automatic)")
	generateCmd.Flags().BoolVar(&genDuplicates, "duplicates", true, "allow a tile to cover several cells")
	generateCmd.Flags().IntVar(&genMaxUsage, "max-usage", 0, "cap per-tile usage (0 = derived)")
	generateCmd.Flags().BoolVar(&genTint, "tint", true, "tint tiles toward their cell color")
	generateCmd.Flags().Float64Var(&genIntensity, "tint-intensity", 0.45, "tint strength in [0,1]")
	generateCmd.MarkFlagRequired("target")
	generateCmd.MarkFlagRequired("tiles")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	targetData, err := os.ReadFile(genTarget)
	if err != nil {
		return fmt.Errorf("read target: %w", err)
	}
	target, _, err := image.Decode(bytes.NewReader(targetData))
	if err != nil {
		return fmt.Errorf("decode target: %w", err)
	}

	tiles, skipped, err := pool.LoadDir(genTilesDir)
	if err != nil {
		return err
	}
	logVerbose("loaded %d tiles (%d skipped)", tiles.Count(), skipped)

	width, height := genWidth, genHeight
	if width == 0 || height == 0 {
		b := target.Bounds()
		width, height = b.Dx(), b.Dy()
	}

	opts := mosaic.Options{
		Tier:             mosaic.Tier(genTier),
		ExactTileCount:   genTileCount,
		DetailMultiplier: genDetail,
		AllowDuplicates:  genDuplicates,
		MaxUsagePerTile:  genMaxUsage,
		AllowTinting:     genTint,
		TintIntensity:    genIntensity,
	}

	result, err := engine.New().Generate(target, tiles.List(), width, height, opts)
	if err != nil {
		return err
	}
	logVerbose("grid %dx%d, pyramid max level %d, %d tiles",
		result.Grid.Cols, result.Grid.Rows, result.Metadata.MaxLevel, result.Pyramid.TileCount())

	return writeDeepZoomTree(genOut, result)
}

// writeDeepZoomTree lays out mosaic.png, mosaic.dzi and the tile tree
// the way Deep Zoom viewers expect ({name}_files/{level}/{x}_{y}.{ext}).
func writeDeepZoomTree(outDir string, result *engine.Result) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "mosaic.png"), result.MosaicPNG, 0o644); err != nil {
		return fmt.Errorf("write mosaic: %w", err)
	}

	meta := result.Metadata
	descriptor := meta.Descriptor()
	if err := os.WriteFile(filepath.Join(outDir, "mosaic.dzi"), []byte(descriptor), 0o644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}

	ext := strings.TrimPrefix(meta.Format, ".")
	for level := 0; level <= meta.MaxLevel; level++ {
		cols, rows := meta.TileGrid(level)
		levelDir := filepath.Join(outDir, "mosaic_files", fmt.Sprintf("%d", level))
		if err := os.MkdirAll(levelDir, 0o755); err != nil {
			return fmt.Errorf("create level dir: %w", err)
		}
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				data, ok := result.Pyramid.Tile(level, x, y)
				if !ok {
					continue // hole left by a skipped encode
				}
				name := fmt.Sprintf("%d_%d.%s", x, y, ext)
				if err := os.WriteFile(filepath.Join(levelDir, name), data, 0o644); err != nil {
					return fmt.Errorf("write tile %d/%s: %w", level, name, err)
				}
			}
		}
	}
	return nil
}
