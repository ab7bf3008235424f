package main

import (
	"fmt"
	"os"
	"runtime"

	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/spf13/cobra"
)

// Version information - set by ldflags during build
var (
	version = "dev"
	commit  = "none"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "mosaic",
	Short: "Photo-mosaic generator with deep-zoom output",
	Long: `mosaic — turns a target image and a pool of tile images into a large
composite where every grid cell is covered by the tile whose average
color is the closest perceptual (CIEDE2000) match.

The finished mosaic is exposed as a Deep Zoom (DZI) pyramid so viewers
can pan and zoom without ever loading the full-resolution image.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"mosaic %s (%s, %s/%s, %s)\n",
		version, commit, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[mosaic] "+format+"\n", args...)
	}
}
