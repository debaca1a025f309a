// Package texcodec wraps the optional TextureCodec collaborator with a
// resize step and an additive debug-preview path. Nothing here is
// consulted by tile correctness: a texture that fails to encode through
// Wrapper just means a tile ships without that texture's KTX2/JPEG
// payload, and a failed preview write is swallowed by the caller, never
// propagated as a tile-fatal error.
package texcodec

import (
	"fmt"

	"github.com/pspoerri/tileslicer/internal/ioiface"
)

// DefaultJPEGQuality is the quality New applies to the JPEG fallback path
// when none is given.
const DefaultJPEGQuality = 85

// Wrapper adapts an ioiface.TextureCodec into the pipeline's "try KTX2,
// fall back to JPEG" policy.
type Wrapper struct {
	Codec   ioiface.TextureCodec
	Quality int
}

// New constructs a Wrapper around codec, defaulting Quality when unset.
func New(codec ioiface.TextureCodec, quality int) *Wrapper {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	return &Wrapper{Codec: codec, Quality: quality}
}

// EncodeBaseColor encodes an RGBA base-color texture, preferring KTX2 and
// falling back to JPEG (dropping alpha) if the codec's KTX2 path fails.
func (w *Wrapper) EncodeBaseColor(rgba []byte, width, height int) ([]byte, string, error) {
	if w.Codec == nil {
		return nil, "", fmt.Errorf("texcodec: no codec configured")
	}
	if out, err := w.Codec.EncodeKTX2(rgba, width, height); err == nil {
		return out, "ktx2", nil
	}
	rgb := dropAlpha(rgba)
	out, err := w.Codec.EncodeJPEG(rgb, width, height, w.Quality)
	if err != nil {
		return nil, "", fmt.Errorf("texcodec: KTX2 and JPEG encode both failed: %w", err)
	}
	return out, "jpeg", nil
}

func dropAlpha(rgba []byte) []byte {
	rgb := make([]byte, 0, len(rgba)/4*3)
	for i := 0; i+3 < len(rgba); i += 4 {
		rgb = append(rgb, rgba[i], rgba[i+1], rgba[i+2])
	}
	return rgb
}
