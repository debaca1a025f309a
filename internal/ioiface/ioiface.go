// Package ioiface defines the small collaborator interfaces the tiling
// pipeline consumes but does not implement: source decoding, blob
// persistence, task persistence, and texture/geometry codecs. Each mirrors
// an Encoder-style "single capability, no inheritance" shape.
package ioiface

import (
	"context"
	"io"

	"github.com/pspoerri/tileslicer/internal/geom"
)

// LoadResult is what a ModelLoader hands back: the flattened triangle set,
// its world-space bounding box, and the materials the triangles reference.
type LoadResult struct {
	Triangles []geom.Triangle
	Bounds    geom.BoundingBox3D
	Materials map[geom.MaterialID]geom.Material
}

// ModelLoader decodes a source asset into triangles. Source-format
// decoding itself (OSGB/glTF/OBJ/STL/PLY) is out of scope for the tiling
// core; this is the contract the core consumes.
type ModelLoader interface {
	// Supports reports whether the loader can handle the given file
	// extension (e.g. ".obj", including the leading dot).
	Supports(extension string) bool
	// Load decodes path into a LoadResult. Implementations should honor
	// cancellation promptly.
	Load(ctx context.Context, path string) (LoadResult, error)
}

// BlobStore persists tile payloads and hierarchy documents. For
// LocalFilesystem mode, bucketOrPrefix is the absolute output_prefix and
// key is a relative path; for ObjectStore mode bucketOrPrefix is a bucket
// name.
type BlobStore interface {
	Put(ctx context.Context, bucketOrPrefix, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucketOrPrefix, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, bucketOrPrefix, key string) (bool, error)
	Delete(ctx context.Context, bucketOrPrefix, key string) error
}

// TextureCodec encodes raw RGBA texture data into a compressed wire
// format. Implementations should fall back from KTX2 to JPEG on failure.
type TextureCodec interface {
	EncodeKTX2(rgba []byte, w, h int) ([]byte, error)
	EncodeJPEG(rgb []byte, w, h int, quality int) ([]byte, error)
}

// GeometryCodec compresses vertex/index buffers with Draco. Only invoked
// when a SlicingConfig sets EnableDraco.
type GeometryCodec interface {
	EncodeDraco(positions, normals, uvs []float32, indices []uint32, quantizationBits int) ([]byte, error)
}

// TextureSource resolves a Material's TextureID to its raw RGBA source
// pixels, on demand. Implementations typically cache per source-asset
// decode; the tiling core never decodes source textures itself.
type TextureSource interface {
	LoadRGBA(ctx context.Context, textureID string) (pixels []byte, width, height int, err error)
}
