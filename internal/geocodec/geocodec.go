// Package geocodec wraps the optional GeometryCodec collaborator
// (Draco compression), invoked only when a SlicingConfig sets
// EnableDraco. No Draco encoder ships in this repo — EncodeDraco is an
// external collaborator the caller supplies, mirroring how ModelLoader
// decoding itself lives outside the tiling core. This package's job is
// just the gating and buffer-shape glue around that collaborator.
package geocodec

import (
	"fmt"

	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/ioiface"
)

// DefaultQuantizationBits matches Draco's own commonly used default for
// position attributes.
const DefaultQuantizationBits = 14

// Wrapper gates EncodeDraco behind EnableDraco and flattens triangle
// buffers into the codec's expected position/normal/uv/index shape.
type Wrapper struct {
	Codec            ioiface.GeometryCodec
	QuantizationBits int
}

// New constructs a Wrapper. quantizationBits <= 0 uses DefaultQuantizationBits.
func New(codec ioiface.GeometryCodec, quantizationBits int) *Wrapper {
	if quantizationBits <= 0 {
		quantizationBits = DefaultQuantizationBits
	}
	return &Wrapper{Codec: codec, QuantizationBits: quantizationBits}
}

// EncodeIfEnabled returns (nil, false, nil) when enableDraco is false or no
// codec is configured — the caller falls back to its uncompressed buffer
// layout. Otherwise it flattens triangles and returns the compressed
// payload.
func (w *Wrapper) EncodeIfEnabled(enableDraco bool, triangles []geom.Triangle) ([]byte, bool, error) {
	if !enableDraco || w.Codec == nil {
		return nil, false, nil
	}
	if len(triangles) == 0 {
		return nil, false, nil
	}

	positions, normals, uvs, indices := flatten(triangles)
	out, err := w.Codec.EncodeDraco(positions, normals, uvs, indices, w.QuantizationBits)
	if err != nil {
		return nil, false, fmt.Errorf("geocodec: EncodeDraco: %w", err)
	}
	return out, true, nil
}

// flatten lays out triangle vertices as independent (non-indexed) triples,
// matching how the tile generators already consume triangles, and returns
// a trivial 0..n-1 index buffer alongside it since Draco still expects one.
func flatten(triangles []geom.Triangle) (positions, normals, uvs []float32, indices []uint32) {
	positions = make([]float32, 0, len(triangles)*9)
	normals = make([]float32, 0, len(triangles)*9)
	uvs = make([]float32, 0, len(triangles)*6)
	indices = make([]uint32, 0, len(triangles)*3)

	idx := uint32(0)
	for _, tri := range triangles {
		for _, v := range tri.V {
			positions = append(positions, v.X, v.Y, v.Z)
		}

		n := tri.GeometricNormal()
		for i := 0; i < 3; i++ {
			normal := n
			if tri.HasNormals {
				normal = tri.Normal[i]
			}
			normals = append(normals, normal.X, normal.Y, normal.Z)
		}

		for i := 0; i < 3; i++ {
			var uv geom.Vector2
			if tri.HasUVs {
				uv = tri.UV[i]
			}
			uvs = append(uvs, uv.X, uv.Y)
		}

		indices = append(indices, idx, idx+1, idx+2)
		idx += 3
	}
	return positions, normals, uvs, indices
}
