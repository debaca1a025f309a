package partition

import (
	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/model"
)

// gridStrategy divides model_bounds at level L into 2^L cells per
// horizontal axis and max(1, 2^(L-1)) cells vertically, clipping each
// cell's AABB to model_bounds.
type gridStrategy struct {
	cfg Config
}

func (g *gridStrategy) Generate(level int, modelBounds geom.BoundingBox3D) []model.TileDescriptor {
	cellsXY := 1 << uint(level)
	cellsZ := 1
	if level > 0 {
		cellsZ = 1 << uint(level-1)
	}

	size := modelBounds.Size()
	cellX := size.X / float32(cellsXY)
	cellY := size.Y / float32(cellsXY)
	cellZ := size.Z / float32(cellsZ)

	descriptors := make([]model.TileDescriptor, 0, cellsXY*cellsXY*cellsZ)
	for x := 0; x < cellsXY; x++ {
		for y := 0; y < cellsXY; y++ {
			for z := 0; z < cellsZ; z++ {
				min := geom.Vector3{
					X: modelBounds.Min.X + float32(x)*cellX,
					Y: modelBounds.Min.Y + float32(y)*cellY,
					Z: modelBounds.Min.Z + float32(z)*cellZ,
				}
				max := geom.Vector3{
					X: modelBounds.Min.X + float32(x+1)*cellX,
					Y: modelBounds.Min.Y + float32(y+1)*cellY,
					Z: modelBounds.Min.Z + float32(z+1)*cellZ,
				}
				bounds := clipToBounds(geom.BoundingBox3D{Min: min, Max: max}, modelBounds)

				var parent *model.TileCoord
				if level > 0 {
					p := model.TileCoord{Level: level - 1, X: x / 2, Y: y / 2, Z: z / 2}
					parent = &p
				}

				descriptors = append(descriptors, model.TileDescriptor{
					Coord:  model.TileCoord{Level: level, X: x, Y: y, Z: z},
					Bounds: bounds,
					Parent: parent,
				})
			}
		}
	}
	return descriptors
}
