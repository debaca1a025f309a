package partition

import (
	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/model"
)

// octreeStrategy recursively splits a node into 8 children while
// node.size > tile_size and node.level < max_level, in preorder. The whole
// tree is built once (lazily, on the first Generate call) since child
// existence at level L+1 depends on recursive descent from the root, not
// on level in isolation.
type octreeStrategy struct {
	cfg       Config
	built     bool
	byLevel   map[int][]model.TileDescriptor
}

type octreeNode struct {
	coord  model.TileCoord
	bounds geom.BoundingBox3D
	parent *model.TileCoord
}

func (o *octreeStrategy) Generate(level int, modelBounds geom.BoundingBox3D) []model.TileDescriptor {
	if !o.built {
		o.build(modelBounds)
	}
	return o.byLevel[level]
}

func (o *octreeStrategy) build(modelBounds geom.BoundingBox3D) {
	o.byLevel = map[int][]model.TileDescriptor{}
	root := octreeNode{coord: model.TileCoord{Level: 0, X: 0, Y: 0, Z: 0}, bounds: modelBounds}
	o.descend(root)
	o.built = true
}

func (o *octreeStrategy) descend(node octreeNode) {
	o.byLevel[node.coord.Level] = append(o.byLevel[node.coord.Level], model.TileDescriptor{
		Coord:            node.coord,
		Bounds:           node.bounds,
		Parent:           node.parent,
		ChildrenExpected: 0, // filled in below once children are known
	})

	size := node.bounds.Size()
	maxDim := maxOf3(size.X, size.Y, size.Z)
	if float64(maxDim) <= o.cfg.TileSize || node.coord.Level >= o.cfg.MaxLevel {
		return
	}

	center := node.bounds.Center()
	half := size.Scale(0.5)

	// Mark the descriptor we just appended as having 8 children.
	last := o.byLevel[node.coord.Level]
	last[len(last)-1].ChildrenExpected = 8

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
		_ = center

		parent := node.coord
		childCoord := model.TileCoord{Level: node.coord.Level + 1, X: node.coord.X*2 + int(ox), Y: node.coord.Y*2 + int(oy), Z: node.coord.Z*2 + int(oz)}
		o.descend(octreeNode{coord: childCoord, bounds: geom.BoundingBox3D{Min: min, Max: max}, parent: &parent})
	}
}

func maxOf3(a, b, c float32) float32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
