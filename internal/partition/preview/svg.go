// Package preview renders a partitioning run's tile boundaries (one level
// at a time) as an SVG diagram, for debugging strategy behavior without a
// 3D viewer. Entirely optional: the tiling engine never calls it unless a
// SlicingConfig sets PartitionPreview.
package preview

import (
	"bytes"
	"fmt"
	"sort"

	svg "github.com/ajstarks/svgo"

	"github.com/pspoerri/tileslicer/internal/model"
)

// Options configures one SVG render.
type Options struct {
	Width, Height int
	Margin        int
	Title         string
}

// DefaultOptions returns sensible render defaults.
func DefaultOptions() Options {
	return Options{Width: 900, Height: 900, Margin: 40, Title: "Partition preview"}
}

// RenderLevel draws the top-down (X/Y) projection of every descriptor's
// bounds at one level, color-coded by whether it has children, against
// the model bounds for scale.
func RenderLevel(descriptors []model.TileDescriptor, modelBounds [2]float64, modelSize [2]float64, opts Options) []byte {
	if opts.Width <= 0 {
		opts.Width = 900
	}
	if opts.Height <= 0 {
		opts.Height = 900
	}
	if opts.Margin <= 0 {
		opts.Margin = 40
	}

	buf := new(bytes.Buffer)
	canvas := svg.New(buf)
	canvas.Start(opts.Width, opts.Height)
	canvas.Rect(0, 0, opts.Width, opts.Height, "fill:#111418")

	if opts.Title != "" {
		canvas.Text(opts.Width/2, 24, opts.Title, "text-anchor:middle;font-size:16px;fill:#e2e8f0;font-family:sans-serif")
	}

	drawW := float64(opts.Width - 2*opts.Margin)
	drawH := float64(opts.Height - 2*opts.Margin)

	// Sort by coord for deterministic draw order (and deterministic
	// output byte-for-byte given identical input).
	sorted := make([]model.TileDescriptor, len(descriptors))
	copy(sorted, descriptors)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Coord, sorted[j].Coord
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})

	for _, d := range sorted {
		x0 := opts.Margin + int(drawW*float64(float64(d.Bounds.Min.X)-modelBounds[0])/modelSize[0])
		y0 := opts.Margin + int(drawH*float64(float64(d.Bounds.Min.Y)-modelBounds[1])/modelSize[1])
		x1 := opts.Margin + int(drawW*float64(float64(d.Bounds.Max.X)-modelBounds[0])/modelSize[0])
		y1 := opts.Margin + int(drawH*float64(float64(d.Bounds.Max.Y)-modelBounds[1])/modelSize[1])

		style := "fill:none;stroke:#4299e1;stroke-width:1;opacity:0.8"
		if d.ChildrenExpected == 0 {
			style = "fill:#48bb78;fill-opacity:0.15;stroke:#48bb78;stroke-width:1"
		}
		canvas.Rect(x0, y0, maxInt(x1-x0, 1), maxInt(y1-y0, 1), style)
	}

	canvas.Text(opts.Width/2, opts.Height-10, fmt.Sprintf("%d tiles", len(descriptors)),
		"text-anchor:middle;font-size:11px;fill:#a0aec0;font-family:monospace")

	canvas.End()
	return buf.Bytes()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
