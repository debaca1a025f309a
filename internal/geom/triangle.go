package geom

import (
	"fmt"

	"github.com/pspoerri/tileslicer/internal/pipelineerr"
)

// MaterialID identifies a Material by stable id. Zero means "no material".
type MaterialID uint32

// Triangle is three vertices with optional per-vertex normals, per-vertex
// UVs, and an optional material id.
type Triangle struct {
	V          [3]Vector3
	Normal     [3]Vector3  // zero value if HasNormals is false
	UV         [3]Vector2  // zero value if HasUVs is false
	HasNormals bool
	HasUVs     bool
	Material   MaterialID
}

// NewTriangle validates and constructs a Triangle from three vertices.
// Returns a *pipelineerr.Error of KindInvalidGeometry when any coordinate is
// non-finite or the triangle is degenerate (any edge shorter than Epsilon,
// or area below Epsilon).
func NewTriangle(v0, v1, v2 Vector3) (Triangle, error) {
	t := Triangle{V: [3]Vector3{v0, v1, v2}}
	if err := t.Validate(); err != nil {
		return Triangle{}, err
	}
	return t, nil
}

// Validate reports whether t is well-formed: finite coordinates, every edge
// longer than Epsilon, and area above Epsilon.
func (t Triangle) Validate() error {
	for i, v := range t.V {
		if !v.IsFinite() {
			return pipelineerr.New(pipelineerr.KindInvalidGeometry, "geom.Triangle.Validate",
				fmt.Errorf("vertex %d has non-finite coordinate: %+v", i, v))
		}
	}
	e0 := t.V[1].Sub(t.V[0])
	e1 := t.V[2].Sub(t.V[1])
	e2 := t.V[0].Sub(t.V[2])
	if e0.Length() <= Epsilon || e1.Length() <= Epsilon || e2.Length() <= Epsilon {
		return pipelineerr.New(pipelineerr.KindInvalidGeometry, "geom.Triangle.Validate",
			fmt.Errorf("degenerate edge: lengths %.3g, %.3g, %.3g", e0.Length(), e1.Length(), e2.Length()))
	}
	if t.Area() <= Epsilon {
		return pipelineerr.New(pipelineerr.KindInvalidGeometry, "geom.Triangle.Validate",
			fmt.Errorf("degenerate area: %.3g", t.Area()))
	}
	return nil
}

// Area returns the triangle's surface area.
func (t Triangle) Area() float32 {
	e0 := t.V[1].Sub(t.V[0])
	e1 := t.V[2].Sub(t.V[0])
	return e0.Cross(e1).Length() * 0.5
}

// GeometricNormal returns the triangle's face normal from winding order,
// independent of any stored per-vertex normals.
func (t Triangle) GeometricNormal() Vector3 {
	e0 := t.V[1].Sub(t.V[0])
	e1 := t.V[2].Sub(t.V[0])
	return e0.Cross(e1).Normalize()
}

// Centroid returns the triangle's centroid.
func (t Triangle) Centroid() Vector3 {
	return t.V[0].Add(t.V[1]).Add(t.V[2]).Scale(1.0 / 3.0)
}

// AABB returns the triangle's axis-aligned bounding box.
func (t Triangle) AABB() BoundingBox3D {
	b := BoundingBox3D{Min: t.V[0], Max: t.V[0]}
	b = b.ExpandPoint(t.V[1])
	b = b.ExpandPoint(t.V[2])
	return b
}

// RenormalizeNormals renormalizes any stored per-vertex normals to unit
// length, per the ingest contract ("Normals (if present) are unit-length or
// will be renormalized on ingest").
func (t *Triangle) RenormalizeNormals() {
	if !t.HasNormals {
		return
	}
	for i := range t.Normal {
		t.Normal[i] = t.Normal[i].Normalize()
	}
}

// Recentered returns a copy of t with every vertex translated by -center.
// Used by tile generators to express geometry relative to RTC_CENTER.
func (t Triangle) Recentered(center Vector3) Triangle {
	out := t
	for i := range out.V {
		out.V[i] = out.V[i].Sub(center)
	}
	return out
}
