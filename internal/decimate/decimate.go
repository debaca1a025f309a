// Package decimate implements per-tile mesh simplification: vertex
// deduplication, cache/fetch order optimization, and an edge-collapse
// reduction pass that respects a target index count and a per-attribute
// error budget. There is no third-party mesh-simplification library in the
// retrieved example corpus, so this is hand-rolled — see DESIGN.md for the
// justification.
package decimate

import (
	"sort"

	"github.com/pspoerri/tileslicer/internal/geom"
)

// Options configures a Simplify call.
type Options struct {
	TargetRatio      float32 // clamped to [0,1]
	TargetError      float32 // model-space error budget; 0 disables the cap
	PreserveNormals  bool
	PreserveUVs      bool
}

// vertex is the deduplicated vertex record carrying every attribute stream
// a triangle might reference.
type vertex struct {
	pos        geom.Vector3
	normal     geom.Vector3
	uv         geom.Vector2
	hasNormal  bool
	hasUV      bool
	material   geom.MaterialID
}

// mesh is the indexed representation Simplify operates on internally.
type mesh struct {
	verts []vertex
	idx   []int32 // triangle list, 3 indices per triangle
}

// Simplify dedups vertices, rebuilds the index buffer, optimizes vertex
// order, then edge-collapses toward target_index_count =
// original_index_count * TargetRatio, never exceeding the original index
// count.
func Simplify(triangles []geom.Triangle, opts Options) []geom.Triangle {
	if len(triangles) == 0 {
		return nil
	}

	ratio := opts.TargetRatio
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	m := dedup(triangles, opts)
	optimizeVertexCache(&m)
	optimizeOverdraw(&m)
	optimizeVertexFetch(&m)

	originalCount := len(m.idx)
	targetCount := int(float32(originalCount) * ratio)
	targetCount -= targetCount % 3
	if targetCount < 0 {
		targetCount = 0
	}

	edgeCollapse(&m, targetCount, opts)

	return m.toTriangles()
}

// dedup builds vertex/index buffers, keying identical position (+ normal/uv
// when preserved, + material) to the same vertex slot.
func dedup(triangles []geom.Triangle, opts Options) mesh {
	type key struct {
		px, py, pz int64
		nx, ny, nz int64
		u, v       int64
		mat        geom.MaterialID
	}

	const q = 1 << 16 // quantization scale for dedup keys
	quant := func(f float32) int64 { return int64(f * q) }

	index := make(map[key]int32, len(triangles)*3)
	var m mesh
	m.idx = make([]int32, 0, len(triangles)*3)

	for _, t := range triangles {
		for i := 0; i < 3; i++ {
			var k key
			k.px, k.py, k.pz = quant(t.V[i].X), quant(t.V[i].Y), quant(t.V[i].Z)
			k.mat = t.Material
			if opts.PreserveNormals && t.HasNormals {
				k.nx, k.ny, k.nz = quant(t.Normal[i].X), quant(t.Normal[i].Y), quant(t.Normal[i].Z)
			}
			if opts.PreserveUVs && t.HasUVs {
				k.u, k.v = quant(t.UV[i].X), quant(t.UV[i].Y)
			}

			vi, ok := index[k]
			if !ok {
				vi = int32(len(m.verts))
				index[k] = vi
				m.verts = append(m.verts, vertex{
					pos:       t.V[i],
					normal:    t.Normal[i],
					uv:        t.UV[i],
					hasNormal: t.HasNormals,
					hasUV:     t.HasUVs,
					material:  t.Material,
				})
			}
			m.idx = append(m.idx, vi)
		}
	}
	return m
}

// optimizeVertexCache reorders triangles to favor locality of recently
// emitted vertex indices, a cheap stand-in for a full Tipsify/Forsyth pass:
// triangles are bucketed by their lowest vertex index and emitted in
// bucket order, which keeps triangles sharing vertices close together.
func optimizeVertexCache(m *mesh) {
	triCount := len(m.idx) / 3
	if triCount <= 1 {
		return
	}
	type tri struct {
		a, b, c int32
		minIdx  int32
	}
	tris := make([]tri, triCount)
	for i := 0; i < triCount; i++ {
		a, b, c := m.idx[i*3], m.idx[i*3+1], m.idx[i*3+2]
		tris[i] = tri{a, b, c, minOf3(a, b, c)}
	}
	sort.SliceStable(tris, func(i, j int) bool { return tris[i].minIdx < tris[j].minIdx })
	for i, tr := range tris {
		m.idx[i*3], m.idx[i*3+1], m.idx[i*3+2] = tr.a, tr.b, tr.c
	}
}

func minOf3(a, b, c int32) int32 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// optimizeOverdraw reorders triangles front-to-back along the dominant
// scene axis using centroid positions, reducing overdraw for opaque
// rasterization without needing a full view-dependent pass.
func optimizeOverdraw(m *mesh) {
	triCount := len(m.idx) / 3
	if triCount <= 1 {
		return
	}

	// Find the axis of greatest centroid spread.
	var lo, hi geom.Vector3
	lo = geom.Vector3{X: 1e30, Y: 1e30, Z: 1e30}
	hi = geom.Vector3{X: -1e30, Y: -1e30, Z: -1e30}
	centroids := make([]geom.Vector3, triCount)
	for i := 0; i < triCount; i++ {
		a, b, c := m.verts[m.idx[i*3]], m.verts[m.idx[i*3+1]], m.verts[m.idx[i*3+2]]
		ctr := a.pos.Add(b.pos).Add(c.pos).Scale(1.0 / 3.0)
		centroids[i] = ctr
		lo = geom.Vector3{X: minf(lo.X, ctr.X), Y: minf(lo.Y, ctr.Y), Z: minf(lo.Z, ctr.Z)}
		hi = geom.Vector3{X: maxf(hi.X, ctr.X), Y: maxf(hi.Y, ctr.Y), Z: maxf(hi.Z, ctr.Z)}
	}
	spread := hi.Sub(lo)

	axis := func(v geom.Vector3) float32 { return v.X }
	if spread.Y >= spread.X && spread.Y >= spread.Z {
		axis = func(v geom.Vector3) float32 { return v.Y }
	} else if spread.Z >= spread.X && spread.Z >= spread.Y {
		axis = func(v geom.Vector3) float32 { return v.Z }
	}

	type ordered struct {
		a, b, c int32
		key     float32
	}
	ord := make([]ordered, triCount)
	for i := 0; i < triCount; i++ {
		ord[i] = ordered{m.idx[i*3], m.idx[i*3+1], m.idx[i*3+2], axis(centroids[i])}
	}
	sort.SliceStable(ord, func(i, j int) bool { return ord[i].key < ord[j].key })
	for i, o := range ord {
		m.idx[i*3], m.idx[i*3+1], m.idx[i*3+2] = o.a, o.b, o.c
	}
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// optimizeVertexFetch renumbers vertices in first-use order after the
// cache/overdraw passes, so the vertex buffer a GPU streams in matches the
// order the index buffer actually references — improving fetch locality.
func optimizeVertexFetch(m *mesh) {
	remap := make([]int32, len(m.verts))
	for i := range remap {
		remap[i] = -1
	}
	newVerts := make([]vertex, 0, len(m.verts))
	for i, vi := range m.idx {
		if remap[vi] == -1 {
			remap[vi] = int32(len(newVerts))
			newVerts = append(newVerts, m.verts[vi])
		}
		m.idx[i] = remap[vi]
	}
	m.verts = newVerts
}

func (m mesh) toTriangles() []geom.Triangle {
	out := make([]geom.Triangle, 0, len(m.idx)/3)
	for i := 0; i+2 < len(m.idx); i += 3 {
		a, b, c := m.verts[m.idx[i]], m.verts[m.idx[i+1]], m.verts[m.idx[i+2]]
		t := geom.Triangle{
			V:          [3]geom.Vector3{a.pos, b.pos, c.pos},
			Normal:     [3]geom.Vector3{a.normal, b.normal, c.normal},
			UV:         [3]geom.Vector2{a.uv, b.uv, c.uv},
			HasNormals: a.hasNormal && b.hasNormal && c.hasNormal,
			HasUVs:     a.hasUV && b.hasUV && c.hasUV,
			Material:   a.material,
		}
		if t.Validate() != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}
