package tilingengine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/model"
)

// contentHash computes sha256(level, x, y, z, bounds, payload), the
// canonical per-tile hash used both to detect unchanged tiles in
// incremental mode and to populate TileRecord.ContentHash. Hashing the
// final encoded bytes (rather than the source triangles) means the hash
// also changes if generator configuration changes, which is the behavior
// incremental mode needs: a config change should force a re-slice even if
// the underlying geometry in a region did not.
func contentHash(coord model.TileCoord, bounds geom.BoundingBox3D, payload []byte) string {
	h := sha256.New()

	var buf [4]byte
	writeInt := func(v int) {
		binary.LittleEndian.PutUint32(buf[:], uint32(v))
		h.Write(buf[:])
	}
	writeInt(coord.Level)
	writeInt(coord.X)
	writeInt(coord.Y)
	writeInt(coord.Z)

	writeFloat := func(v float32) {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	writeFloat(bounds.Min.X)
	writeFloat(bounds.Min.Y)
	writeFloat(bounds.Min.Z)
	writeFloat(bounds.Max.X)
	writeFloat(bounds.Max.Y)
	writeFloat(bounds.Max.Z)

	h.Write(payload)

	return hex.EncodeToString(h.Sum(nil))
}
