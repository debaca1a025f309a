package spatialindex

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/pspoerri/tileslicer/internal/geom"
)

// Index is what the Tiling Engine queries per tile: candidate triangles
// overlapping a bounds within a tolerance, plus the two scene-level facts
// (Bounds, SceneDiagonal) AdaptiveTolerance needs. Grid satisfies it
// directly; CachedGrid wraps a Grid with an LRU in front of the same call.
type Index interface {
	TrianglesOverlapping(query geom.BoundingBox3D, tolerance float32) []geom.Triangle
	Bounds() geom.BoundingBox3D
	SceneDiagonal() float32
}

// CachedGrid wraps a Grid with a bounded LRU of recent query results. Tiling
// Engine workers within one level frequently re-query overlapping or
// identical bounds (octree/kd-tree siblings share faces); the cache trades
// a little memory for avoiding redundant candidate gathering and exact
// intersection passes. A cache miss falls through to the uncached path and
// returns identical results, so the cache carries no correctness risk.
type CachedGrid struct {
	grid  *Grid
	cache *lru.Cache
}

// NewCachedGrid wraps grid with an LRU of the given size. size <= 0
// disables caching (every query goes straight to the grid).
func NewCachedGrid(grid *Grid, size int) *CachedGrid {
	cg := &CachedGrid{grid: grid}
	if size > 0 {
		c, err := lru.New(size)
		if err == nil {
			cg.cache = c
		}
	}
	return cg
}

// TrianglesOverlapping queries the underlying grid, consulting the LRU
// first. The cache key buckets tolerance to a fixed precision so that
// floating-point jitter in repeated adaptive-tolerance computations for the
// same logical query still hits.
func (cg *CachedGrid) TrianglesOverlapping(query geom.BoundingBox3D, tolerance float32) []geom.Triangle {
	if cg.cache == nil {
		return cg.grid.TrianglesOverlapping(query, tolerance)
	}

	key := cacheKey(query, tolerance)
	if v, ok := cg.cache.Get(key); ok {
		return v.([]geom.Triangle)
	}

	result := cg.grid.TrianglesOverlapping(query, tolerance)
	cg.cache.Add(key, result)
	return result
}

// Bounds returns the underlying grid's bounds.
func (cg *CachedGrid) Bounds() geom.BoundingBox3D { return cg.grid.Bounds() }

// SceneDiagonal returns the underlying grid's scene diagonal.
func (cg *CachedGrid) SceneDiagonal() float32 { return cg.grid.SceneDiagonal() }

func cacheKey(box geom.BoundingBox3D, tolerance float32) string {
	const q = 1e4 // quantize to 1e-4 units to absorb float jitter
	round := func(f float32) int64 {
		return int64(f * q)
	}
	return fmt.Sprintf("%d,%d,%d|%d,%d,%d|%d",
		round(box.Min.X), round(box.Min.Y), round(box.Min.Z),
		round(box.Max.X), round(box.Max.Y), round(box.Max.Z),
		round(tolerance))
}
