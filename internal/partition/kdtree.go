package partition

import (
	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/model"
)

// kdtreeStrategy binary-splits a node along its longest axis until
// node.size <= tile_size or level = max_level, tie-breaking axis order
// X, Y, Z. Built lazily, same rationale as octreeStrategy.
type kdtreeStrategy struct {
	cfg     Config
	built   bool
	byLevel map[int][]model.TileDescriptor
}

type kdtreeNode struct {
	coord  model.TileCoord
	bounds geom.BoundingBox3D
	parent *model.TileCoord
}

func (k *kdtreeStrategy) Generate(level int, modelBounds geom.BoundingBox3D) []model.TileDescriptor {
	if !k.built {
		k.byLevel = map[int][]model.TileDescriptor{}
		root := kdtreeNode{coord: model.TileCoord{Level: 0, X: 0, Y: 0, Z: 0}, bounds: modelBounds}
		k.descend(root, 0)
		k.built = true
	}
	return k.byLevel[level]
}

// descend splits along the longest axis of node.bounds. childIndex (0 or
// 1) becomes the X coordinate of the TileCoord since kd-tree nodes have no
// natural 3D grid address; Y,Z stay at the parent's value so descendant
// coords remain distinct via X alone.
func (k *kdtreeStrategy) descend(node kdtreeNode, childIndex int) {
	node.coord.X = node.coord.X*2 + childIndex

	k.byLevel[node.coord.Level] = append(k.byLevel[node.coord.Level], model.TileDescriptor{
		Coord:  node.coord,
		Bounds: node.bounds,
		Parent: node.parent,
	})

	size := node.bounds.Size()
	maxDim := size.X
	axis := 0
	if size.Y > maxDim {
		maxDim = size.Y
		axis = 1
	}
	if size.Z > maxDim {
		maxDim = size.Z
		axis = 2
	}

	if float64(maxDim) <= k.cfg.TileSize || node.coord.Level >= k.cfg.MaxLevel {
		return
	}

	last := k.byLevel[node.coord.Level]
	last[len(last)-1].ChildrenExpected = 2

	parent := node.coord
	left, right := splitAlongAxis(node.bounds, axis)
	k.descend(kdtreeNode{coord: model.TileCoord{Level: node.coord.Level + 1, X: node.coord.X, Y: node.coord.Y, Z: node.coord.Z}, bounds: left, parent: &parent}, 0)
	k.descend(kdtreeNode{coord: model.TileCoord{Level: node.coord.Level + 1, X: node.coord.X, Y: node.coord.Y, Z: node.coord.Z}, bounds: right, parent: &parent}, 1)
}

func splitAlongAxis(b geom.BoundingBox3D, axis int) (geom.BoundingBox3D, geom.BoundingBox3D) {
	left, right := b, b
	switch axis {
	case 0:
		mid := (b.Min.X + b.Max.X) / 2
		left.Max.X = mid
		right.Min.X = mid
	case 1:
		mid := (b.Min.Y + b.Max.Y) / 2
		left.Max.Y = mid
		right.Min.Y = mid
	default:
		mid := (b.Min.Z + b.Max.Z) / 2
		left.Max.Z = mid
		right.Min.Z = mid
	}
	return left, right
}
