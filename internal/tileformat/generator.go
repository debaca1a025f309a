// Package tileformat encodes one tile's triangles and materials into the
// payload formats Cesium 3D Tiles consumes: GLB, glTF, B3DM and PNTS (there
// is no I3DM encoder). Every generator recenters geometry to the tile's
// bounds center (RTC_CENTER) before encoding, preserving float precision.
package tileformat

import (
	"fmt"

	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/model"
	"github.com/pspoerri/tileslicer/internal/pipelineerr"
)

// MaxTileBytes is the default per-tile byte ceiling; exceeding it raises an
// OversizeError.
const MaxTileBytes = 50 * 1024 * 1024

// PointSampling selects how the PNTS generator turns triangles into points.
type PointSampling int

const (
	SamplingVerticesOnly PointSampling = iota
	SamplingUniformSurface
	SamplingDense
)

// Generator is the single capability every tile payload encoder
// implements: produce bytes for a triangle set. This collapses the deep
// generator hierarchies a naive port would carry into one interface plus
// format-tagged implementations.
type Generator interface {
	// Generate encodes triangles (already assigned to this tile) with the
	// given materials into the generator's wire format. bounds is the
	// tile's own bounding box, used to compute RTC_CENTER.
	Generate(triangles []geom.Triangle, bounds geom.BoundingBox3D, materials map[geom.MaterialID]geom.Material) ([]byte, error)

	// FileExtension returns the extension this generator's output uses
	// for relative tile paths ("b3dm", "glb", "gltf", "pnts").
	FileExtension() string
}

// Options configures a generator's construction.
type Options struct {
	MaxBytes           int // 0 uses MaxTileBytes
	PointSampling      PointSampling
	PlaceholderOnEmpty bool // emit a placeholder instead of EncodeError on empty input
}

// New constructs the Generator for the given output format.
func New(format model.OutputFormat, opts Options) (Generator, error) {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = MaxTileBytes
	}
	switch format {
	case model.FormatGLB:
		return &glbGenerator{maxBytes: opts.MaxBytes, placeholderOnEmpty: opts.PlaceholderOnEmpty}, nil
	case model.FormatGLTF:
		return &glbGenerator{maxBytes: opts.MaxBytes, textJSON: true, placeholderOnEmpty: opts.PlaceholderOnEmpty}, nil
	case model.FormatB3DM:
		return &b3dmGenerator{
			glb:      &glbGenerator{maxBytes: opts.MaxBytes, placeholderOnEmpty: opts.PlaceholderOnEmpty},
			maxBytes: opts.MaxBytes,
		}, nil
	case model.FormatPNTS:
		return &pntsGenerator{sampling: opts.PointSampling, maxBytes: opts.MaxBytes, placeholderOnEmpty: opts.PlaceholderOnEmpty}, nil
	default:
		return nil, pipelineerr.New(pipelineerr.KindInvalidRequest, "tileformat.New",
			fmt.Errorf("unsupported output format: %q", format))
	}
}

// OversizeError marks a tile payload that exceeded its configured byte
// ceiling. Distinguishable from a generic EncodeError via errors.As so
// callers can report the offending size.
type OversizeError struct {
	Bytes, Limit int
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("tile payload %d bytes exceeds ceiling %d bytes", e.Bytes, e.Limit)
}

func checkSize(n, max int, op string) error {
	if n > max {
		return pipelineerr.New(pipelineerr.KindEncodeError, op, &OversizeError{Bytes: n, Limit: max})
	}
	return nil
}

func errEmptyInput(op string) error {
	return pipelineerr.New(pipelineerr.KindEncodeError, op, fmt.Errorf("no triangles to encode"))
}

// pad4 returns the number of padding bytes needed to round n up to a
// multiple of 4.
func pad4(n int) int {
	if r := n % 4; r != 0 {
		return 4 - r
	}
	return 0
}

// pad8 returns the number of padding bytes needed to round n up to a
// multiple of 8.
func pad8(n int) int {
	if r := n % 8; r != 0 {
		return 8 - r
	}
	return 0
}
