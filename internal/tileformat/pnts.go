package tileformat

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/pipelineerr"
)

const pntsHeaderBytes = 28

// pntsGenerator selects points from triangles (vertices-only, uniform
// surface sampling, or dense sampling), colors them by a height gradient,
// and packs them into a PNTS container. Header shape grounded on the
// reference point-cloud tiler's writeBinaryPnts (other_examples
// gocesiumtiler io-consumer.go): magic/version/byteLength, feature-table
// JSON+binary lengths, batch-table JSON+binary lengths, in that order.
type pntsGenerator struct {
	sampling           PointSampling
	maxBytes           int
	placeholderOnEmpty bool
	rng                *rand.Rand
}

func (p *pntsGenerator) FileExtension() string { return "pnts" }

type sampledPoint struct {
	pos    geom.Vector3
	normal geom.Vector3
	hasN   bool
}

func (p *pntsGenerator) Generate(triangles []geom.Triangle, bounds geom.BoundingBox3D, _ map[geom.MaterialID]geom.Material) ([]byte, error) {
	if len(triangles) == 0 && !p.placeholderOnEmpty {
		return nil, errEmptyInput("tileformat.pntsGenerator.Generate")
	}

	center := bounds.Center()
	points := p.selectPoints(triangles)

	n := len(points)
	positions := getBuffer(n * 12)
	colors := getBuffer(n * 3)
	var normals []byte
	haveNormals := n > 0 && allHaveNormals(points)
	if haveNormals {
		normals = getBuffer(n * 12)
	}

	minZ, maxZ := heightRange(points)

	for _, pt := range points {
		local := pt.pos.Sub(center)
		positions = appendFloat32(positions, local.X, local.Y, local.Z)
		colors = append(colors, heightGradient(pt.pos.Z, minZ, maxZ)...)
		if haveNormals {
			nv := pt.normal.Normalize()
			normals = appendFloat32(normals, nv.X, nv.Y, nv.Z)
		}
	}

	featureTable := map[string]any{
		"POINTS_LENGTH": n,
		"RTC_CENTER":    [3]float64{float64(center.X), float64(center.Y), float64(center.Z)},
		"POSITION":      map[string]int{"byteOffset": 0},
		"RGB":           map[string]int{"byteOffset": len(positions)},
	}
	binLen := len(positions) + len(colors)
	if haveNormals {
		featureTable["NORMAL"] = map[string]int{"byteOffset": binLen}
		binLen += len(normals)
	}

	ftJSON, err := json.Marshal(featureTable)
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.KindEncodeError, "tileformat.pntsGenerator.Generate", fmt.Errorf("marshal feature table: %w", err))
	}
	ftJSON = padJSONTo4(ftJSON)

	batchTable := map[string]any{}
	btJSON, err := json.Marshal(batchTable)
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.KindEncodeError, "tileformat.pntsGenerator.Generate", fmt.Errorf("marshal batch table: %w", err))
	}
	btJSON = padJSONTo4(btJSON)

	total := pntsHeaderBytes + len(ftJSON) + binLen + len(btJSON)

	maxBytes := p.maxBytes
	if maxBytes <= 0 {
		maxBytes = MaxTileBytes
	}
	if err := checkSize(total, maxBytes, "tileformat.pntsGenerator.Generate"); err != nil {
		return nil, err
	}

	out := getBuffer(total)
	out = append(out, []byte("pnts")...)
	out = binary.LittleEndian.AppendUint32(out, 1)
	out = binary.LittleEndian.AppendUint32(out, uint32(total))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(ftJSON)))
	out = binary.LittleEndian.AppendUint32(out, uint32(binLen))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(btJSON)))
	out = binary.LittleEndian.AppendUint32(out, 0)
	out = append(out, ftJSON...)
	out = append(out, positions...)
	out = append(out, colors...)
	if haveNormals {
		out = append(out, normals...)
	}
	out = append(out, btJSON...)

	return out, nil
}

// selectPoints dispatches to the configured sampling strategy.
func (p *pntsGenerator) selectPoints(triangles []geom.Triangle) []sampledPoint {
	switch p.sampling {
	case SamplingUniformSurface:
		return p.sampleSurface(triangles, 1)
	case SamplingDense:
		return p.sampleSurface(triangles, 2)
	default:
		return verticesOnly(triangles)
	}
}

// verticesOnly returns every distinct triangle vertex, deduplicated by
// exact float3 equality (vertices shared across adjacent triangles collapse
// to one point).
func verticesOnly(triangles []geom.Triangle) []sampledPoint {
	type key struct{ x, y, z float32 }
	seen := map[key]int{}
	var out []sampledPoint
	for _, t := range triangles {
		for i := 0; i < 3; i++ {
			v := t.V[i]
			k := key{v.X, v.Y, v.Z}
			if idx, ok := seen[k]; ok {
				if t.HasNormals && !out[idx].hasN {
					out[idx].normal = t.Normal[i]
					out[idx].hasN = true
				}
				continue
			}
			pt := sampledPoint{pos: v}
			if t.HasNormals {
				pt.normal = t.Normal[i]
				pt.hasN = true
			}
			seen[k] = len(out)
			out = append(out, pt)
		}
	}
	return out
}

// sampleSurface draws pointsPerTriangle random points per triangle using
// barycentric coordinates (r1, r2 uniform in [0,1], reflected into the
// triangle when r1+r2>1), per the surface-sampling strategy.
func (p *pntsGenerator) sampleSurface(triangles []geom.Triangle, pointsPerTriangle int) []sampledPoint {
	rng := p.rng
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	out := make([]sampledPoint, 0, len(triangles)*pointsPerTriangle)
	for _, t := range triangles {
		for i := 0; i < pointsPerTriangle; i++ {
			r1, r2 := rng.Float32(), rng.Float32()
			if r1+r2 > 1 {
				r1, r2 = 1-r1, 1-r2
			}
			a, b, c := 1-r1-r2, r1, r2

			pos := t.V[0].Scale(a).Add(t.V[1].Scale(b)).Add(t.V[2].Scale(c))
			pt := sampledPoint{pos: pos}
			if t.HasNormals {
				n := t.Normal[0].Scale(a).Add(t.Normal[1].Scale(b)).Add(t.Normal[2].Scale(c))
				pt.normal = n.Normalize()
				pt.hasN = true
			}
			out = append(out, pt)
		}
	}
	return out
}

func allHaveNormals(points []sampledPoint) bool {
	for _, p := range points {
		if !p.hasN {
			return false
		}
	}
	return true
}

func heightRange(points []sampledPoint) (float32, float32) {
	if len(points) == 0 {
		return 0, 0
	}
	min, max := points[0].pos.Z, points[0].pos.Z
	for _, p := range points[1:] {
		if p.pos.Z < min {
			min = p.pos.Z
		}
		if p.pos.Z > max {
			max = p.pos.Z
		}
	}
	return min, max
}

// heightGradient maps z, normalized against [minZ,maxZ], to an RGB triple
// that sweeps blue (low) -> green (mid) -> red (high).
func heightGradient(z, minZ, maxZ float32) []byte {
	t := float32(0.5)
	if maxZ > minZ {
		t = (z - minZ) / (maxZ - minZ)
	}
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}

	var r, g, b float32
	switch {
	case t < 0.5:
		u := t / 0.5
		b = 1 - u
		g = u
	default:
		u := (t - 0.5) / 0.5
		g = 1 - u
		r = u
	}
	return []byte{toByte(r), toByte(g), toByte(b)}
}

func toByte(f float32) byte {
	v := int(math.Round(float64(f) * 255))
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return byte(v)
}

func padJSONTo4(b []byte) []byte {
	n := pad4(len(b))
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
