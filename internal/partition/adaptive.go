package partition

import (
	"math"
	"sort"

	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/model"
)

// targetTrianglesPerTile is the density threshold above which adaptive
// subdivision splits a region regardless of its curvature complexity.
const targetTrianglesPerTile = 2000

// curvatureComplexityThreshold is the edge-length-variance / mean-area
// ratio above which a region is considered detailed enough to warrant
// another split even when sparsely populated.
const curvatureComplexityThreshold = 4.0

// adaptiveStrategy subdivides octree-style, but only where density or
// curvature-complexity metrics computed from the already-loaded triangle
// set exceed threshold — regions below threshold stop early, and empty
// regions are omitted entirely. Reuses the mesh the engine already loaded
// for the run rather than re-reading source geometry per level.
type adaptiveStrategy struct {
	cfg       Config
	triangles []geom.Triangle
	built     bool
	byLevel   map[int][]model.TileDescriptor
}

type adaptiveNode struct {
	coord     model.TileCoord
	bounds    geom.BoundingBox3D
	parent    *model.TileCoord
	triangles []geom.Triangle
}

func (a *adaptiveStrategy) Generate(level int, modelBounds geom.BoundingBox3D) []model.TileDescriptor {
	if !a.built {
		a.byLevel = map[int][]model.TileDescriptor{}
		root := adaptiveNode{coord: model.TileCoord{Level: 0}, bounds: modelBounds, triangles: a.triangles}
		a.descend(root)
		a.built = true
	}
	return a.byLevel[level]
}

func (a *adaptiveStrategy) descend(node adaptiveNode) {
	if len(node.triangles) == 0 {
		return // omit empty regions entirely, per the adaptive contract
	}

	a.byLevel[node.coord.Level] = append(a.byLevel[node.coord.Level], model.TileDescriptor{
		Coord:  node.coord,
		Bounds: node.bounds,
		Parent: node.parent,
	})

	if node.coord.Level >= a.cfg.MaxLevel {
		return
	}

	density := float64(len(node.triangles)) / math.Max(float64(node.bounds.Volume()), 1e-9)
	_ = density // density alone is scale-dependent; triangle count dominates the split decision below
	complexity := curvatureComplexity(node.triangles)

	if len(node.triangles) <= targetTrianglesPerTile && complexity <= curvatureComplexityThreshold {
		return
	}

	last := a.byLevel[node.coord.Level]
	last[len(last)-1].ChildrenExpected = 8

	size := node.bounds.Size()
	half := size.Scale(0.5)
	parent := node.coord

	// Deterministic iteration order: children visited 0..7 in the
	// standard octree bit order, each child's triangle list built by a
	// single linear scan of the parent's (already deterministically
	// ordered) triangle slice.
	for i := 0; i < 8; i++ {
		ox := float32(i & 1)
		oy := float32((i / 2) & 1)
		oz := float32(i / 4)

		min := geom.Vector3{
			X: node.bounds.Min.X + ox*half.X,
			Y: node.bounds.Min.Y + oy*half.Y,
			Z: node.bounds.Min.Z + oz*half.Z,
		}
		max := geom.Vector3{X: min.X + half.X, Y: min.Y + half.Y, Z: min.Z + half.Z}
		childBounds := geom.BoundingBox3D{Min: min, Max: max}

		childCoord := model.TileCoord{
			Level: node.coord.Level + 1,
			X:     node.coord.X*2 + int(ox),
			Y:     node.coord.Y*2 + int(oy),
			Z:     node.coord.Z*2 + int(oz),
		}

		var childTriangles []geom.Triangle
		for _, t := range node.triangles {
			if childBounds.Intersects(t.AABB()) {
				childTriangles = append(childTriangles, t)
			}
		}

		a.descend(adaptiveNode{coord: childCoord, bounds: childBounds, parent: &parent, triangles: childTriangles})
	}
}

// curvatureComplexity derives a shape-variance metric from per-triangle
// edge lengths: the coefficient of variation of edge length, scaled by the
// inverse of mean triangle area, so that regions with many small,
// irregularly-shaped triangles score higher than large, uniform ones.
func curvatureComplexity(triangles []geom.Triangle) float64 {
	if len(triangles) == 0 {
		return 0
	}
	edgeLengths := make([]float64, 0, len(triangles)*3)
	var totalArea float64
	for _, t := range triangles {
		e0 := t.V[1].Sub(t.V[0]).Length()
		e1 := t.V[2].Sub(t.V[1]).Length()
		e2 := t.V[0].Sub(t.V[2]).Length()
		edgeLengths = append(edgeLengths, float64(e0), float64(e1), float64(e2))
		totalArea += float64(t.Area())
	}
	sort.Float64s(edgeLengths) // deterministic order before the reduction below

	var sum float64
	for _, l := range edgeLengths {
		sum += l
	}
	mean := sum / float64(len(edgeLengths))
	if mean <= 0 {
		return 0
	}

	var variance float64
	for _, l := range edgeLengths {
		d := l - mean
		variance += d * d
	}
	variance /= float64(len(edgeLengths))
	stddev := math.Sqrt(variance)
	coeffVariation := stddev / mean

	meanArea := totalArea / float64(len(triangles))
	if meanArea <= 0 {
		meanArea = 1e-9
	}
	return coeffVariation / meanArea
}
