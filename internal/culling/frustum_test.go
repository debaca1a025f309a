package culling

import (
	"testing"

	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/model"
)

func box(minX, minY, minZ, maxX, maxY, maxZ float32) geom.BoundingBox3D {
	return geom.BoundingBox3D{
		Min: geom.Vector3{X: minX, Y: minY, Z: minZ},
		Max: geom.Vector3{X: maxX, Y: maxY, Z: maxZ},
	}
}

func forwardViewport() Viewport {
	return Viewport{
		Position:  geom.Vector3{X: 0, Y: 0, Z: 0},
		Direction: geom.Vector3{X: 1, Y: 0, Z: 0},
		FOV:       1.2, // ~69 degrees
		Near:      0.1,
		Far:       1000,
		Height:    1080,
	}
}

func TestFrustumCull_TileAheadIsVisible(t *testing.T) {
	v := forwardViewport()
	tiles := []Tile{{Coord: model.TileCoord{Level: 0}, Bounds: box(40, -5, -5, 60, 5, 5)}}
	got := FrustumCull(v, tiles)
	if len(got) != 1 {
		t.Fatalf("expected tile ahead of camera to be visible, got %d tiles", len(got))
	}
}

func TestFrustumCull_TileBehindCameraIsRejected(t *testing.T) {
	v := forwardViewport()
	tiles := []Tile{{Coord: model.TileCoord{Level: 0}, Bounds: box(-60, -5, -5, -40, 5, 5)}}
	got := FrustumCull(v, tiles)
	if len(got) != 0 {
		t.Fatalf("expected tile behind camera to be rejected, got %d tiles", len(got))
	}
}

func TestFrustumCull_TileBeyondFarPlaneIsRejected(t *testing.T) {
	v := forwardViewport()
	v.Far = 100
	tiles := []Tile{{Coord: model.TileCoord{Level: 0}, Bounds: box(5000, -5, -5, 5010, 5, 5)}}
	got := FrustumCull(v, tiles)
	if len(got) != 0 {
		t.Fatalf("expected far tile to be rejected, got %d tiles", len(got))
	}
}

func TestFrustumCull_TileOutsideSideAngleIsRejected(t *testing.T) {
	v := forwardViewport()
	// Almost directly to the side (small forward offset to avoid sitting on
	// the camera itself), well outside a ~69 degree FOV.
	tiles := []Tile{{Coord: model.TileCoord{Level: 0}, Bounds: box(1, 500, -1, 2, 502, 1)}}
	got := FrustumCull(v, tiles)
	if len(got) != 0 {
		t.Fatalf("expected tile far to the side to be rejected, got %d tiles", len(got))
	}
}

func TestFrustumCull_TinyDistantTileRejectedByScreenSize(t *testing.T) {
	v := forwardViewport()
	v.Far = 1_000_000
	tiles := []Tile{{Coord: model.TileCoord{Level: 0}, Bounds: box(999_000, -0.001, -0.001, 999_000.002, 0.001, 0.001)}}
	got := FrustumCull(v, tiles)
	if len(got) != 0 {
		t.Fatalf("expected sub-pixel distant tile to be rejected, got %d tiles", len(got))
	}
}

func TestFrustumCull_DeepLevelPrefersCoarserLOD(t *testing.T) {
	v := forwardViewport()
	v.Far = 100
	// level 5 tile well past (far/2^5)*1.5 but still within the far plane.
	tiles := []Tile{{Coord: model.TileCoord{Level: 5}, Bounds: box(90, -1, -1, 92, 1, 1)}}
	got := FrustumCull(v, tiles)
	if len(got) != 0 {
		t.Fatalf("expected deep-level tile beyond its LOD overlap threshold to be rejected, got %d tiles", len(got))
	}
}

func TestFrustumCull_IsIdempotent(t *testing.T) {
	v := forwardViewport()
	tiles := []Tile{
		{Coord: model.TileCoord{Level: 0, X: 0}, Bounds: box(40, -5, -5, 60, 5, 5)},
		{Coord: model.TileCoord{Level: 0, X: 1}, Bounds: box(60, -5, -5, 80, 5, 5)},
		{Coord: model.TileCoord{Level: 0, X: 2}, Bounds: box(-200, -5, -5, -180, 5, 5)},
	}
	first := FrustumCull(v, tiles)
	second := FrustumCull(v, first)
	if len(first) != len(second) {
		t.Fatalf("expected culling the result again to be idempotent: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Coord != second[i].Coord {
			t.Fatalf("expected identical tile sets, got %+v vs %+v", first, second)
		}
	}
}

func TestFrustumCull_ResultIsSortedForDeterminism(t *testing.T) {
	v := forwardViewport()
	tiles := []Tile{
		{Coord: model.TileCoord{Level: 0, X: 2}, Bounds: box(40, -5, -5, 60, 5, 5)},
		{Coord: model.TileCoord{Level: 0, X: 1}, Bounds: box(40, 6, -5, 60, 16, 5)},
	}
	got := FrustumCull(v, tiles)
	if len(got) != 2 {
		t.Fatalf("expected both tiles visible, got %d", len(got))
	}
	if !coordLess(got[0].Coord, got[1].Coord) {
		t.Fatalf("expected sorted output, got %+v", got)
	}
}

func TestPredictLoading_TranslatesCameraByMotionTimesDt(t *testing.T) {
	v := forwardViewport()
	motion := geom.Vector3{X: 100, Y: 0, Z: 0}
	tiles := []Tile{{Coord: model.TileCoord{Level: 0}, Bounds: box(1150, -5, -5, 1170, 5, 5)}}

	// Not yet visible from the camera's current position: the tile center is
	// 1160 units ahead, past the far distance of 1000. After predicting 2s
	// ahead at speed 100, the camera will have moved to x=200 and the tile
	// is 960 units directly ahead, inside the far distance.
	notYet := FrustumCull(v, tiles)
	predicted := PredictLoading(v, motion, tiles, 2)
	if len(predicted) == 0 {
		t.Fatalf("expected predicted viewport to see the tile ahead of the projected camera position")
	}
	_ = notYet
}

func TestPredictLoading_DefaultsDtWhenNonPositive(t *testing.T) {
	v := forwardViewport()
	motion := geom.Vector3{X: 20, Y: 0, Z: 0}
	// With the default 2s window the camera moves to x=40, bringing the tile
	// (center x=1030) within the far distance of 1000; from x=0 it is out of
	// range.
	tiles := []Tile{{Coord: model.TileCoord{Level: 0}, Bounds: box(1020, -5, -5, 1040, 5, 5)}}
	got := PredictLoading(v, motion, tiles, 0)
	if len(got) != 1 {
		t.Fatalf("expected default dt to still produce a visible prediction, got %d tiles", len(got))
	}
}
