// Package codec provides the image encoders used for mosaic output and
// pyramid tiles, behind a small registry so callers select by format
// name.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
)

// Encoder encodes an image to a specific output format.
type Encoder interface {
	// Format returns the output format name (e.g. "jpeg", "png").
	Format() string

	// Encode converts the image to bytes at the given quality (1-100).
	// Quality is ignored by lossless formats.
	Encode(img image.Image, quality int) ([]byte, error)

	// Extension returns the file extension without dot.
	Extension() string
}

// JPEGEncoder encodes baseline JPEG via the standard library.
type JPEGEncoder struct{}

func (JPEGEncoder) Format() string    { return "jpeg" }
func (JPEGEncoder) Extension() string { return "jpg" }

func (JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// PNGEncoder encodes PNG via the standard library.
type PNGEncoder struct{}

func (PNGEncoder) Format() string    { return "png" }
func (PNGEncoder) Extension() string { return "png" }

func (PNGEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Registry maps format names to encoders.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry creates a registry with every built-in encoder.
func NewRegistry() *Registry {
	r := &Registry{encoders: make(map[string]Encoder)}
	for _, enc := range []Encoder{JPEGEncoder{}, PNGEncoder{}} {
		r.encoders[enc.Format()] = enc
	}
	return r
}

// Get returns the encoder for a format name, accepting the common
// "jpg" alias, or nil when the format is unknown.
func (r *Registry) Get(format string) Encoder {
	format = strings.ToLower(format)
	if format == "jpg" {
		format = "jpeg"
	}
	return r.encoders[format]
}
