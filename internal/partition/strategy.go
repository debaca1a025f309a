// Package partition implements the four spatial partitioning strategies the
// tiling engine can drive: grid, octree, kd-tree, and adaptive
// density-driven subdivision. Every strategy implements the same
// generate(level) -> descriptors contract so the engine never branches on
// strategy type.
package partition

import (
	"math"

	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/model"
)

// Strategy generates the ordered tile descriptors for one level of a
// tiling run. Implementations must be safe to call once per level, in
// increasing level order.
type Strategy interface {
	// Generate returns the descriptors for level, given the overall model
	// bounds. Descriptor order is deterministic across calls with the
	// same inputs.
	Generate(level int, modelBounds geom.BoundingBox3D) []model.TileDescriptor
}

// Config configures any Strategy constructor.
type Config struct {
	TileSize                float64
	MaxLevel                int
	GeometricErrorThreshold float64
}

// New constructs the Strategy for s. adaptive additionally requires the
// loaded triangle set; pass nil for grid/octree/kdtree.
func New(s model.Strategy, cfg Config, triangles []geom.Triangle) Strategy {
	switch s {
	case model.StrategyOctree:
		return &octreeStrategy{cfg: cfg}
	case model.StrategyKdTree:
		return &kdtreeStrategy{cfg: cfg}
	case model.StrategyAdaptive:
		return &adaptiveStrategy{cfg: cfg, triangles: triangles}
	default:
		return &gridStrategy{cfg: cfg}
	}
}

// GeometricError returns the geometric error for a tile at level L, per
// the threshold·2^(maxLevel-L) rule shared by every strategy.
func GeometricError(cfg Config, level int) float64 {
	return cfg.GeometricErrorThreshold * math.Pow(2, float64(cfg.MaxLevel-level))
}

func clipToBounds(b, modelBounds geom.BoundingBox3D) geom.BoundingBox3D {
	out := b
	out.Min.X = clampf(out.Min.X, modelBounds.Min.X, modelBounds.Max.X)
	out.Min.Y = clampf(out.Min.Y, modelBounds.Min.Y, modelBounds.Max.Y)
	out.Min.Z = clampf(out.Min.Z, modelBounds.Min.Z, modelBounds.Max.Z)
	out.Max.X = clampf(out.Max.X, modelBounds.Min.X, modelBounds.Max.X)
	out.Max.Y = clampf(out.Max.Y, modelBounds.Min.Y, modelBounds.Max.Y)
	out.Max.Z = clampf(out.Max.Z, modelBounds.Min.Z, modelBounds.Max.Z)
	return out
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
