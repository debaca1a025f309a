package tileformat

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/pipelineerr"
)

const b3dmHeaderBytes = 28

// b3dmGenerator wraps a glbGenerator: a B3DM is a 28-byte header plus
// feature-table/batch-table JSON (no binary bodies needed for a single,
// un-batched tile) plus an embedded GLB body. Header and table layout is
// grounded on the PNTS framing in the reference point-cloud tiler
// (other_examples gocesiumtiler io-consumer.go), which uses the same
// {magic, version, byteLength, 4 table lengths} shape 3D Tiles defines for
// every binary container format.
type b3dmGenerator struct {
	glb      *glbGenerator
	maxBytes int
}

func (b *b3dmGenerator) FileExtension() string { return "b3dm" }

func (b *b3dmGenerator) Generate(triangles []geom.Triangle, bounds geom.BoundingBox3D, materials map[geom.MaterialID]geom.Material) ([]byte, error) {
	if len(triangles) == 0 && !b.glb.placeholderOnEmpty {
		return nil, errEmptyInput("tileformat.b3dmGenerator.Generate")
	}
	glbBytes, err := b.glb.Generate(triangles, bounds, materials)
	if err != nil {
		return nil, err
	}

	center := bounds.Center()
	featureTable := map[string]any{
		"BATCH_LENGTH": 0,
		"RTC_CENTER":   [3]float64{float64(center.X), float64(center.Y), float64(center.Z)},
	}
	featureTableBytes, err := json.Marshal(featureTable)
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.KindEncodeError, "tileformat.b3dmGenerator.Generate", fmt.Errorf("marshal feature table: %w", err))
	}
	featureTableBytes = padJSONTo8(featureTableBytes)

	batchTable := map[string]any{}
	batchTableBytes, err := json.Marshal(batchTable)
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.KindEncodeError, "tileformat.b3dmGenerator.Generate", fmt.Errorf("marshal batch table: %w", err))
	}
	batchTableBytes = padJSONTo8(batchTableBytes)

	total := b3dmHeaderBytes + len(featureTableBytes) + len(batchTableBytes) + len(glbBytes)

	maxBytes := b.maxBytes
	if maxBytes <= 0 {
		maxBytes = MaxTileBytes
	}
	if err := checkSize(total, maxBytes, "tileformat.b3dmGenerator.Generate"); err != nil {
		return nil, err
	}

	out := getBuffer(total)
	out = append(out, []byte("b3dm")...)
	out = binary.LittleEndian.AppendUint32(out, 1) // version
	out = binary.LittleEndian.AppendUint32(out, uint32(total))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(featureTableBytes)))
	out = binary.LittleEndian.AppendUint32(out, 0) // feature table binary length
	out = binary.LittleEndian.AppendUint32(out, uint32(len(batchTableBytes)))
	out = binary.LittleEndian.AppendUint32(out, 0) // batch table binary length
	out = append(out, featureTableBytes...)
	out = append(out, batchTableBytes...)
	out = append(out, glbBytes...)

	return out, nil
}

// padJSONTo8 pads JSON text with trailing spaces to a length that is a
// multiple of 8 bytes. The B3DM generator applies it to both of its JSON
// tables; it writes no binary table bodies.
func padJSONTo8(b []byte) []byte {
	n := pad8(len(b))
	if n == 0 {
		return b
	}
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = 0x20
	}
	return padded
}
