// Package spatialindex builds a uniform grid over a mesh's triangles and
// answers "which triangles overlap this AABB" queries with a conservative,
// never-false-negative exact test.
package spatialindex

import (
	"github.com/pspoerri/tileslicer/internal/geom"
)

// Resolution is the fixed cell count per axis used by NewGrid, matching the
// default the tiling engine builds once per run.
type Resolution struct {
	X, Y, Z int
}

// DefaultResolution is the 64×64×32 grid the engine uses unless a caller
// overrides it.
var DefaultResolution = Resolution{X: 64, Y: 64, Z: 32}

// Grid is a uniform spatial index over a fixed triangle set. It is built
// once per tiling run and is read-only afterward, so it is safe to share
// across worker goroutines without locking.
type Grid struct {
	bounds     geom.BoundingBox3D
	res        Resolution
	cellSize   geom.Vector3
	triangles  []geom.Triangle
	cellTris   [][]int32 // flattened cellTris[cellIndex] -> triangle indices
	sceneDiag  float32
}

// NewGrid builds a uniform grid of res cells covering bounds, inserting
// every triangle into each cell its AABB overlaps. Degenerate axes (where
// bounds has zero extent) use a cell size of 1, per spec.
func NewGrid(bounds geom.BoundingBox3D, triangles []geom.Triangle, res Resolution) *Grid {
	size := bounds.Size()
	cellSize := geom.Vector3{
		X: cellDim(size.X, res.X),
		Y: cellDim(size.Y, res.Y),
		Z: cellDim(size.Z, res.Z),
	}

	g := &Grid{
		bounds:    bounds,
		res:       res,
		cellSize:  cellSize,
		triangles: triangles,
		cellTris:  make([][]int32, res.X*res.Y*res.Z),
		sceneDiag: bounds.Diagonal(),
	}

	for idx, t := range triangles {
		tb := t.AABB()
		minI, minJ, minK := g.cellCoord(tb.Min)
		maxI, maxJ, maxK := g.cellCoord(tb.Max)
		for i := minI; i <= maxI; i++ {
			for j := minJ; j <= maxJ; j++ {
				for k := minK; k <= maxK; k++ {
					c := g.cellIndex(i, j, k)
					g.cellTris[c] = append(g.cellTris[c], int32(idx))
				}
			}
		}
	}

	return g
}

func cellDim(extent float32, count int) float32 {
	if count <= 0 {
		count = 1
	}
	if extent <= 0 {
		return 1
	}
	return extent / float32(count)
}

func (g *Grid) cellCoord(p geom.Vector3) (i, j, k int) {
	i = clampCell(int((p.X-g.bounds.Min.X)/g.cellSize.X), g.res.X)
	j = clampCell(int((p.Y-g.bounds.Min.Y)/g.cellSize.Y), g.res.Y)
	k = clampCell(int((p.Z-g.bounds.Min.Z)/g.cellSize.Z), g.res.Z)
	return
}

func clampCell(v, max int) int {
	if max <= 0 {
		max = 1
	}
	if v < 0 {
		return 0
	}
	if v >= max {
		return max - 1
	}
	return v
}

func (g *Grid) cellIndex(i, j, k int) int {
	return (k*g.res.Y+j)*g.res.X + i
}

// SceneDiagonal returns the diagonal length of the grid's bounds, used by
// callers to derive the adaptive tolerance ratio.
func (g *Grid) SceneDiagonal() float32 {
	return g.sceneDiag
}

// Bounds returns the grid's covering bounding box.
func (g *Grid) Bounds() geom.BoundingBox3D {
	return g.bounds
}

// TrianglesOverlapping returns every triangle whose AABB conservatively
// overlaps query, expanded by tolerance, deduplicated, after an exact
// triangle-AABB intersection pass. The result is never missing a true
// intersection (no false negatives); it may include extra candidates near
// the boundary (false positives are acceptable per spec).
func (g *Grid) TrianglesOverlapping(query geom.BoundingBox3D, tolerance float32) []geom.Triangle {
	padded := query.ExpandBy(tolerance)

	// Pad the cell range by one cell on each axis when the query is very
	// small relative to the scene, so a query that straddles a cell
	// boundary near its own size doesn't miss a neighboring cell's triangles.
	ratio := float32(0)
	if g.sceneDiag > 0 {
		ratio = padded.Diagonal() / g.sceneDiag
	}
	cellPad := 0
	if ratio < 0.01 {
		cellPad = 1
	}

	minI, minJ, minK := g.cellCoord(padded.Min)
	maxI, maxJ, maxK := g.cellCoord(padded.Max)
	minI, minJ, minK = minI-cellPad, minJ-cellPad, minK-cellPad
	maxI, maxJ, maxK = maxI+cellPad, maxJ+cellPad, maxK+cellPad
	minI, minJ, minK = clampCell(minI, g.res.X), clampCell(minJ, g.res.Y), clampCell(minK, g.res.Z)
	maxI, maxJ, maxK = clampCell(maxI, g.res.X), clampCell(maxJ, g.res.Y), clampCell(maxK, g.res.Z)

	seen := make(map[int32]struct{})
	var out []geom.Triangle
	for i := minI; i <= maxI; i++ {
		for j := minJ; j <= maxJ; j++ {
			for k := minK; k <= maxK; k++ {
				for _, idx := range g.cellTris[g.cellIndex(i, j, k)] {
					if _, ok := seen[idx]; ok {
						continue
					}
					seen[idx] = struct{}{}
					t := g.triangles[idx]
					if triangleIntersectsAABB(t, padded) {
						out = append(out, t)
					}
				}
			}
		}
	}
	return out
}

// AdaptiveTolerance computes the query tolerance from the ratio of query
// size to scene size: a coarser or finer tolerance band keeps small,
// precise queries from being over-padded and large ones from being
// under-padded.
func AdaptiveTolerance(query, scene geom.BoundingBox3D) float32 {
	qSize := query.Diagonal()
	sSize := scene.Diagonal()
	if sSize <= 0 {
		return 1e-4
	}
	ratio := qSize / sSize
	switch {
	case ratio > 0.1:
		return maxf32(qSize*0.01, 1e-4)
	case ratio > 0.01:
		return maxf32(qSize*0.05, sSize*0.001)
	default:
		return maxf32(qSize*0.10, sSize*0.001)
	}
}

func maxf32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// triangleIntersectsAABB is a conservative exact test: (1) AABB-AABB
// reject, (2) any vertex inside accept, (3) any edge-AABB segment
// intersection accept, (4) otherwise reject.
func triangleIntersectsAABB(t geom.Triangle, box geom.BoundingBox3D) bool {
	if !t.AABB().Intersects(box) {
		return false
	}
	for _, v := range t.V {
		if box.ContainsPoint(v, 0) {
			return true
		}
	}
	edges := [3][2]geom.Vector3{
		{t.V[0], t.V[1]},
		{t.V[1], t.V[2]},
		{t.V[2], t.V[0]},
	}
	for _, e := range edges {
		if segmentIntersectsAABB(e[0], e[1], box) {
			return true
		}
	}
	return false
}

// segmentIntersectsAABB tests a line segment against box using the
// slab method: clip the segment's parametric range [0,1] against each
// axis's pair of planes, rejecting as soon as the range becomes empty.
func segmentIntersectsAABB(a, b geom.Vector3, box geom.BoundingBox3D) bool {
	d := b.Sub(a)
	tMin, tMax := float32(0), float32(1)

	clip := func(p0, d0, min, max float32) bool {
		if d0 == 0 {
			return p0 >= min && p0 <= max
		}
		t0 := (min - p0) / d0
		t1 := (max - p0) / d0
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		return tMin <= tMax
	}

	if !clip(a.X, d.X, box.Min.X, box.Max.X) {
		return false
	}
	if !clip(a.Y, d.Y, box.Min.Y, box.Max.Y) {
		return false
	}
	if !clip(a.Z, d.Z, box.Min.Z, box.Max.Z) {
		return false
	}
	return true
}
