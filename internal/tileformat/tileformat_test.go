package tileformat

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/model"
)

func quadTriangles(t *testing.T) []geom.Triangle {
	t.Helper()
	a := geom.Vector3{X: 0, Y: 0, Z: 0}
	b := geom.Vector3{X: 1, Y: 0, Z: 1}
	c := geom.Vector3{X: 1, Y: 1, Z: 2}
	d := geom.Vector3{X: 0, Y: 1, Z: 0}
	t1, err := geom.NewTriangle(a, b, c)
	if err != nil {
		t.Fatalf("triangle 1: %v", err)
	}
	t2, err := geom.NewTriangle(a, c, d)
	if err != nil {
		t.Fatalf("triangle 2: %v", err)
	}
	return []geom.Triangle{t1, t2}
}

func boundsOf(tris []geom.Triangle) geom.BoundingBox3D {
	b := geom.EmptyBox()
	for _, t := range tris {
		b = b.Union(t.AABB())
	}
	return b
}

func TestGLBGenerator_RoundTripsHeader(t *testing.T) {
	tris := quadTriangles(t)
	bounds := boundsOf(tris)
	gen, err := New(model.FormatGLB, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := gen.Generate(tris, bounds, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) < glbHeaderBytes {
		t.Fatalf("output too short: %d bytes", len(out))
	}
	if magic := binary.LittleEndian.Uint32(out[0:4]); magic != glbMagic {
		t.Fatalf("bad magic: %x", magic)
	}
	if version := binary.LittleEndian.Uint32(out[4:8]); version != glbVersion {
		t.Fatalf("bad version: %d", version)
	}
	total := binary.LittleEndian.Uint32(out[8:12])
	if int(total) != len(out) {
		t.Fatalf("header length %d does not match actual output %d", total, len(out))
	}
}

func TestGLBGenerator_EmptyInputRequiresPlaceholder(t *testing.T) {
	gen, err := New(model.FormatGLB, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := gen.Generate(nil, geom.EmptyBox(), nil); err == nil {
		t.Fatal("expected EncodeError for empty input without placeholder policy")
	}

	genPlaceholder, err := New(model.FormatGLB, Options{PlaceholderOnEmpty: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := genPlaceholder.Generate(nil, geom.EmptyBox(), nil)
	if err != nil {
		t.Fatalf("Generate with placeholder policy: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected non-empty placeholder output")
	}
}

func TestB3DMGenerator_HeaderAndAlignment(t *testing.T) {
	tris := quadTriangles(t)
	bounds := boundsOf(tris)
	gen, err := New(model.FormatB3DM, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := gen.Generate(tris, bounds, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytes.Equal(out[0:4], []byte("b3dm")) {
		t.Fatalf("bad magic: %q", out[0:4])
	}
	total := binary.LittleEndian.Uint32(out[8:12])
	if int(total) != len(out) {
		t.Fatalf("header byteLength %d != actual %d", total, len(out))
	}
	ftLen := binary.LittleEndian.Uint32(out[12:16])
	if ftLen%8 != 0 {
		t.Fatalf("feature table length %d not 8-byte aligned", ftLen)
	}
	btLen := binary.LittleEndian.Uint32(out[20:24])
	if btLen%8 != 0 {
		t.Fatalf("batch table length %d not 8-byte aligned", btLen)
	}
}

// TestPNTSGenerator_VerticesOnlyDedups exercises scenario 4: a 2-triangle
// quad under VerticesOnly sampling must yield exactly 4 points.
func TestPNTSGenerator_VerticesOnlyDedups(t *testing.T) {
	tris := quadTriangles(t)
	bounds := boundsOf(tris)
	gen, err := New(model.FormatPNTS, Options{PointSampling: SamplingVerticesOnly})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := gen.Generate(tris, bounds, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytes.Equal(out[0:4], []byte("pnts")) {
		t.Fatalf("bad magic: %q", out[0:4])
	}
	ftLen := binary.LittleEndian.Uint32(out[12:16])
	ft := out[pntsHeaderBytes : pntsHeaderBytes+ftLen]
	if !bytes.Contains(ft, []byte(`"POINTS_LENGTH":4`)) {
		t.Fatalf("expected POINTS_LENGTH:4 in feature table, got %s", ft)
	}
}

func TestPNTSGenerator_UniformSamplingProducesDoubledPointsForDense(t *testing.T) {
	tris := quadTriangles(t)
	bounds := boundsOf(tris)

	uniform, _ := New(model.FormatPNTS, Options{PointSampling: SamplingUniformSurface})
	dense, _ := New(model.FormatPNTS, Options{PointSampling: SamplingDense})

	outUniform, err := uniform.Generate(tris, bounds, nil)
	if err != nil {
		t.Fatalf("Generate uniform: %v", err)
	}
	outDense, err := dense.Generate(tris, bounds, nil)
	if err != nil {
		t.Fatalf("Generate dense: %v", err)
	}

	uniformFTLen := binary.LittleEndian.Uint32(outUniform[12:16])
	denseFTLen := binary.LittleEndian.Uint32(outDense[12:16])
	uniformFT := outUniform[pntsHeaderBytes : pntsHeaderBytes+uniformFTLen]
	denseFT := outDense[pntsHeaderBytes : pntsHeaderBytes+denseFTLen]
	if !bytes.Contains(uniformFT, []byte(`"POINTS_LENGTH":2`)) {
		t.Fatalf("expected 2 points (1 per triangle), got %s", uniformFT)
	}
	if !bytes.Contains(denseFT, []byte(`"POINTS_LENGTH":4`)) {
		t.Fatalf("expected 4 points (2 per triangle), got %s", denseFT)
	}
}

func TestHeightGradient_SpansBlueToRed(t *testing.T) {
	lowR, lowG, lowB := heightGradient(0, 0, 10)[0], heightGradient(0, 0, 10)[1], heightGradient(0, 0, 10)[2]
	if lowB == 0 || lowR != 0 {
		t.Fatalf("expected blue-dominant color at z=0, got r=%d g=%d b=%d", lowR, lowG, lowB)
	}
	highR, _, highB := heightGradient(10, 0, 10)[0], heightGradient(10, 0, 10)[1], heightGradient(10, 0, 10)[2]
	if highR == 0 || highB != 0 {
		t.Fatalf("expected red-dominant color at z=max, got r=%d b=%d", highR, highB)
	}
}
