package geocodec

import (
	"testing"

	"github.com/pspoerri/tileslicer/internal/geom"
)

type fakeDraco struct {
	quantBits []int
}

func (f *fakeDraco) EncodeDraco(positions, normals, uvs []float32, indices []uint32, quantizationBits int) ([]byte, error) {
	f.quantBits = append(f.quantBits, quantizationBits)
	return []byte("draco-payload"), nil
}

func testTriangle() geom.Triangle {
	return geom.Triangle{
		V: [3]geom.Vector3{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
		},
	}
}

func TestWrapper_EncodeIfEnabled_NoopWhenDisabled(t *testing.T) {
	codec := &fakeDraco{}
	w := New(codec, 0)
	out, used, err := w.EncodeIfEnabled(false, []geom.Triangle{testTriangle()})
	if err != nil {
		t.Fatalf("EncodeIfEnabled: %v", err)
	}
	if used || out != nil {
		t.Fatalf("expected no-op when disabled, got used=%v out=%v", used, out)
	}
	if len(codec.quantBits) != 0 {
		t.Fatalf("expected codec not invoked when disabled")
	}
}

func TestWrapper_EncodeIfEnabled_EncodesWhenEnabled(t *testing.T) {
	codec := &fakeDraco{}
	w := New(codec, 10)
	out, used, err := w.EncodeIfEnabled(true, []geom.Triangle{testTriangle()})
	if err != nil {
		t.Fatalf("EncodeIfEnabled: %v", err)
	}
	if !used || string(out) != "draco-payload" {
		t.Fatalf("expected codec payload, got used=%v out=%q", used, out)
	}
	if len(codec.quantBits) != 1 || codec.quantBits[0] != 10 {
		t.Fatalf("expected quantization bits 10 to be forwarded, got %v", codec.quantBits)
	}
}

func TestWrapper_EncodeIfEnabled_NoopOnEmptyTriangles(t *testing.T) {
	codec := &fakeDraco{}
	w := New(codec, 0)
	out, used, err := w.EncodeIfEnabled(true, nil)
	if err != nil {
		t.Fatalf("EncodeIfEnabled: %v", err)
	}
	if used || out != nil {
		t.Fatalf("expected no-op for empty triangle set, got used=%v", used)
	}
}

func TestWrapper_EncodeIfEnabled_DefaultsQuantizationBits(t *testing.T) {
	w := New(&fakeDraco{}, 0)
	if w.QuantizationBits != DefaultQuantizationBits {
		t.Fatalf("expected default quantization bits %d, got %d", DefaultQuantizationBits, w.QuantizationBits)
	}
}
