package geom

import (
	"testing"

	"pgregory.net/rapid"
)

func vec3Gen() *rapid.Generator[Vector3] {
	return rapid.Custom(func(t *rapid.T) Vector3 {
		return Vector3{
			X: float32(rapid.Float64Range(-1000, 1000).Draw(t, "x")),
			Y: float32(rapid.Float64Range(-1000, 1000).Draw(t, "y")),
			Z: float32(rapid.Float64Range(-1000, 1000).Draw(t, "z")),
		}
	})
}

func TestBoundingBox_UnionContainsBoth(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := BoundingBox3D{Min: vec3Gen().Draw(t, "aMin"), Max: vec3Gen().Draw(t, "aMax")}
		b := BoundingBox3D{Min: vec3Gen().Draw(t, "bMin"), Max: vec3Gen().Draw(t, "bMax")}
		// Normalize min/max so the boxes are valid.
		a = normalizeBox(a)
		b = normalizeBox(b)

		u := a.Union(b)
		if !u.Contains(a, 1e-3) {
			t.Fatalf("union %+v does not contain a %+v", u, a)
		}
		if !u.Contains(b, 1e-3) {
			t.Fatalf("union %+v does not contain b %+v", u, b)
		}
	})
}

func normalizeBox(b BoundingBox3D) BoundingBox3D {
	return BoundingBox3D{
		Min: Vector3{minf(b.Min.X, b.Max.X), minf(b.Min.Y, b.Max.Y), minf(b.Min.Z, b.Max.Z)},
		Max: Vector3{maxf(b.Min.X, b.Max.X), maxf(b.Min.Y, b.Max.Y), maxf(b.Min.Z, b.Max.Z)},
	}
}

func TestTriangle_ValidateRejectsDegenerate(t *testing.T) {
	_, err := NewTriangle(Vector3{}, Vector3{}, Vector3{})
	if err == nil {
		t.Fatal("expected degenerate triangle to be rejected")
	}
}

func TestTriangle_ValidateAcceptsUnitTriangle(t *testing.T) {
	tri, err := NewTriangle(Vector3{}, Vector3{X: 1}, Vector3{Y: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tri.Area() <= 0 {
		t.Fatalf("expected positive area, got %v", tri.Area())
	}
}

func TestOriginTransform_IdentityIsNoOp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := vec3Gen().Draw(t, "p")
		got := Identity().Apply(p)
		if got != p {
			t.Fatalf("identity transform changed point: %+v -> %+v", p, got)
		}
	})
}
