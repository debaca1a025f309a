package geom

import "math"

// BoundingBox3D is an axis-aligned bounding box in model coordinates.
// The sentinel empty box has Min = +Inf, Max = -Inf per axis so that
// Union with any real box produces that box unchanged.
type BoundingBox3D struct {
	Min, Max Vector3
}

// EmptyBox returns the sentinel empty bounding box.
func EmptyBox() BoundingBox3D {
	inf := float32(math.Inf(1))
	return BoundingBox3D{
		Min: Vector3{inf, inf, inf},
		Max: Vector3{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether b is the sentinel empty box (or otherwise
// inverted on any axis).
func (b BoundingBox3D) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Union returns the smallest box containing both b and o.
func (b BoundingBox3D) Union(o BoundingBox3D) BoundingBox3D {
	if b.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return b
	}
	return BoundingBox3D{
		Min: Vector3{minf(b.Min.X, o.Min.X), minf(b.Min.Y, o.Min.Y), minf(b.Min.Z, o.Min.Z)},
		Max: Vector3{maxf(b.Max.X, o.Max.X), maxf(b.Max.Y, o.Max.Y), maxf(b.Max.Z, o.Max.Z)},
	}
}

// ExpandPoint returns b extended to also contain p.
func (b BoundingBox3D) ExpandPoint(p Vector3) BoundingBox3D {
	return b.Union(BoundingBox3D{Min: p, Max: p})
}

// ExpandBy returns b padded by tol on every axis.
func (b BoundingBox3D) ExpandBy(tol float32) BoundingBox3D {
	if b.IsEmpty() {
		return b
	}
	pad := Vector3{tol, tol, tol}
	return BoundingBox3D{Min: b.Min.Sub(pad), Max: b.Max.Add(pad)}
}

// Intersects reports whether b and o overlap (touching counts as overlap).
func (b BoundingBox3D) Intersects(o BoundingBox3D) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

// ContainsPoint reports whether p lies within b, inclusive of a tolerance.
func (b BoundingBox3D) ContainsPoint(p Vector3, tol float32) bool {
	return p.X >= b.Min.X-tol && p.X <= b.Max.X+tol &&
		p.Y >= b.Min.Y-tol && p.Y <= b.Max.Y+tol &&
		p.Z >= b.Min.Z-tol && p.Z <= b.Max.Z+tol
}

// Contains reports whether o is fully contained within b, inclusive of a
// tolerance applied to b.
func (b BoundingBox3D) Contains(o BoundingBox3D, tol float32) bool {
	if o.IsEmpty() {
		return true
	}
	if b.IsEmpty() {
		return false
	}
	return o.Min.X >= b.Min.X-tol && o.Max.X <= b.Max.X+tol &&
		o.Min.Y >= b.Min.Y-tol && o.Max.Y <= b.Max.Y+tol &&
		o.Min.Z >= b.Min.Z-tol && o.Max.Z <= b.Max.Z+tol
}

// Size returns the per-axis extent of b.
func (b BoundingBox3D) Size() Vector3 {
	if b.IsEmpty() {
		return Vector3{}
	}
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of b.
func (b BoundingBox3D) Center() Vector3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Diagonal returns |Size()|, the length of the box's main diagonal.
func (b BoundingBox3D) Diagonal() float32 {
	return b.Size().Length()
}

// Volume returns the box's volume, 0 for an empty or degenerate box.
func (b BoundingBox3D) Volume() float32 {
	if b.IsEmpty() {
		return 0
	}
	s := b.Size()
	return s.X * s.Y * s.Z
}

// Corners returns the 8 corner points of b in a fixed, deterministic order
// (binary counting over X,Y,Z).
func (b BoundingBox3D) Corners() [8]Vector3 {
	var c [8]Vector3
	for i := 0; i < 8; i++ {
		x := b.Min.X
		if i&1 != 0 {
			x = b.Max.X
		}
		y := b.Min.Y
		if i&2 != 0 {
			y = b.Max.Y
		}
		z := b.Min.Z
		if i&4 != 0 {
			z = b.Max.Z
		}
		c[i] = Vector3{x, y, z}
	}
	return c
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
