package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"

	"github.com/pixelfield/mosaic/internal/analysis"
	"github.com/pixelfield/mosaic/internal/mosaic"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [image]",
	Short: "Score an image's complexity and recommend a tile count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("decode image: %w", err)
		}

		b := img.Bounds()
		result := analysis.Analyze(img, b.Dx(), b.Dy())

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Printf("complexity score:  %d/100\n", result.Score)
		fmt.Printf("color variance:    %.1f\n", result.ColorVariance)
		fmt.Printf("edge density:      %.1f%%\n", result.EdgeDensity*100)
		fmt.Printf("saturation spread: %.2f\n", result.SaturationSpread)
		fmt.Printf("recommended tiles (for %dx%d output):\n", b.Dx(), b.Dy())
		for _, tier := range mosaic.Tiers {
			fmt.Printf("  %-6s %d\n", tier, result.RecommendedTiles[tier])
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
