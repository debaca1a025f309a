// Package culling answers runtime viewer queries against an already-built
// tileset: which tiles are visible from a camera now, and which are likely
// to become visible a few seconds from now along the camera's current
// motion. It never writes anything — callers are viewers polling a
// finished tileset, not tiling-engine stages — so it stays pure functions
// over geom/model types, deterministic given identical inputs.
package culling

import (
	"math"
	"sort"

	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/model"
)

// Tile is the minimal per-tile shape culling needs: a coordinate (for LOD
// comparisons) and its bounds. TileRecords satisfy this directly via
// TilesFromRecords.
type Tile struct {
	Coord  model.TileCoord
	Bounds geom.BoundingBox3D
}

// TilesFromRecords adapts persisted TileRecords into culling.Tiles.
func TilesFromRecords(records []model.TileRecord) []Tile {
	tiles := make([]Tile, len(records))
	for i, r := range records {
		tiles[i] = Tile{Coord: r.Coord, Bounds: r.Bounds}
	}
	return tiles
}

// Viewport describes the camera a frustum cull is evaluated against.
// Direction and WorldUp are normalized internally; FOV is the full
// (not half) field of view, in radians. Height is the viewport's pixel
// height, used by the screen-size reject.
type Viewport struct {
	Position  geom.Vector3
	Direction geom.Vector3
	FOV       float32
	Near      float32
	Far       float32
	Height    int
}

// minScreenSizePixels is the angular-size-squared-in-pixels floor below
// which a tile is rejected as too small to matter.
const minScreenSizePixels = 1.0

// worldUp is the reference "up" vector used to derive the viewport's
// right/up basis, matching the algorithm's (0,0,1) convention.
var worldUp = geom.Vector3{X: 0, Y: 0, Z: 1}

// plane is a half-space with an inward-facing unit normal: a point p is
// inside when normal.Dot(p)+d >= 0.
type plane struct {
	normal geom.Vector3
	d      float32
}

func (p plane) distance(pt geom.Vector3) float32 {
	return p.normal.Dot(pt) + p.d
}

// frustumPlanes builds the six inward-facing clip planes (near, far, left,
// right, top, bottom) for v. Horizontal and vertical half-angle are both
// taken as FOV/2 (the viewport carries no separate aspect ratio).
func frustumPlanes(v Viewport) [6]plane {
	dir := v.Direction.Normalize()
	right := dir.Cross(worldUp).Normalize()
	if right.Length() < geom.Epsilon {
		// Direction parallel to world-up: fall back to a stable basis.
		right = geom.Vector3{X: 1, Y: 0, Z: 0}
	}
	up := right.Cross(dir).Normalize()

	half := float64(v.FOV) / 2
	nearCenter := v.Position.Add(dir.Scale(v.Near))
	farCenter := v.Position.Add(dir.Scale(v.Far))

	mk := func(n geom.Vector3) plane {
		n = n.Normalize()
		pl := plane{normal: n, d: -n.Dot(v.Position)}
		// dir itself must always be on the inside of every side/near/far
		// plane; flip if the rotation direction picked the wrong normal.
		if pl.distance(nearCenter) < 0 {
			pl.normal = pl.normal.Scale(-1)
			pl.d = -pl.d
		}
		return pl
	}

	near := plane{normal: dir, d: -dir.Dot(nearCenter)}
	far := plane{normal: dir.Scale(-1), d: dir.Scale(-1).Dot(farCenter) * -1}

	leftDir := rotateAroundAxis(dir, up, float32(half))
	rightDir := rotateAroundAxis(dir, up, float32(-half))
	topDir := rotateAroundAxis(dir, right, float32(-half))
	bottomDir := rotateAroundAxis(dir, right, float32(half))

	left := mk(up.Cross(leftDir))
	rightPlane := mk(rightDir.Cross(up))
	top := mk(right.Cross(topDir))
	bottom := mk(bottomDir.Cross(right))

	return [6]plane{near, far, left, rightPlane, top, bottom}
}

// rotateAroundAxis rotates v around axis (assumed unit length) by angle
// radians, via Rodrigues' formula.
func rotateAroundAxis(v, axis geom.Vector3, angle float32) geom.Vector3 {
	cosA := float32(math.Cos(float64(angle)))
	sinA := float32(math.Sin(float64(angle)))
	term1 := v.Scale(cosA)
	term2 := axis.Cross(v).Scale(sinA)
	term3 := axis.Scale(axis.Dot(v) * (1 - cosA))
	return term1.Add(term2).Add(term3)
}

// FrustumCull filters tiles down to those visible from v, applying the
// distance, angle, six-plane, screen-size, and LOD-overlap rejects in
// order. The result is sorted by coordinate for determinism.
func FrustumCull(v Viewport, tiles []Tile) []Tile {
	planes := frustumPlanes(v)
	dir := v.Direction.Normalize()

	visible := make([]Tile, 0, len(tiles))
	for _, t := range tiles {
		if rejectByDistance(v, t) {
			continue
		}
		if rejectByAngle(v, dir, t) {
			continue
		}
		if rejectByPlanes(planes, t) {
			continue
		}
		if rejectByScreenSize(v, t) {
			continue
		}
		if rejectByLODOverlap(v, t) {
			continue
		}
		visible = append(visible, t)
	}

	sort.Slice(visible, func(i, j int) bool { return coordLess(visible[i].Coord, visible[j].Coord) })
	return visible
}

func coordLess(a, b model.TileCoord) bool {
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

func boundingSphereRadius(b geom.BoundingBox3D) float32 {
	return b.Diagonal() / 2
}

func distanceToCamera(v Viewport, t Tile) float32 {
	return t.Bounds.Center().Sub(v.Position).Length()
}

// rejectByDistance implements reject 1: d < near or d > far * 0.75^level.
func rejectByDistance(v Viewport, t Tile) bool {
	d := distanceToCamera(v, t)
	if d < v.Near {
		return true
	}
	limit := v.Far * float32(math.Pow(0.75, float64(t.Coord.Level)))
	return d > limit
}

// rejectByAngle implements reject 2: the tile center's angle from the
// camera direction exceeds FOV/2 + atan(r/d), where r is the tile's
// bounding sphere radius and d its distance.
func rejectByAngle(v Viewport, dir geom.Vector3, t Tile) bool {
	toTile := t.Bounds.Center().Sub(v.Position)
	d := toTile.Length()
	if d < geom.Epsilon {
		return false
	}
	cosAngle := dir.Dot(toTile) / d
	if cosAngle > 1 {
		cosAngle = 1
	} else if cosAngle < -1 {
		cosAngle = -1
	}
	angle := math.Acos(float64(cosAngle))

	r := boundingSphereRadius(t.Bounds)
	allowed := float64(v.FOV)/2 + math.Atan(float64(r/d))
	return angle > allowed
}

// rejectByPlanes implements reject 3: a tile is rejected iff all eight of
// its AABB corners fall outside any single one of the six frustum planes.
func rejectByPlanes(planes [6]plane, t Tile) bool {
	corners := t.Bounds.Corners()
	for _, p := range planes {
		allOutside := true
		for _, c := range corners {
			if p.distance(c) >= 0 {
				allOutside = false
				break
			}
		}
		if allOutside {
			return true
		}
	}
	return false
}

// rejectByScreenSize implements reject 4: the tile's angular size squared,
// expressed in pixels given the viewport height, falls below threshold.
func rejectByScreenSize(v Viewport, t Tile) bool {
	d := distanceToCamera(v, t)
	if d < geom.Epsilon {
		return false
	}
	r := boundingSphereRadius(t.Bounds)
	angularSize := 2 * math.Atan(float64(r/d))
	pixelsPerRadian := float64(v.Height) / float64(v.FOV)
	screenSize := angularSize * pixelsPerRadian
	return screenSize*screenSize < minScreenSizePixels
}

// rejectByLODOverlap implements reject 5: beyond level 2, prefer the
// coarser LOD once distance exceeds (far / 2^level) * 1.5.
func rejectByLODOverlap(v Viewport, t Tile) bool {
	if t.Coord.Level <= 2 {
		return false
	}
	d := distanceToCamera(v, t)
	threshold := (v.Far / float32(math.Pow(2, float64(t.Coord.Level)))) * 1.5
	return d > threshold
}
