package texcodec

import (
	"context"
	"fmt"
	"testing"

	"github.com/pspoerri/tileslicer/internal/blobstore"
)

type fakeCodec struct {
	ktx2Err error
	jpegErr error
}

func (f fakeCodec) EncodeKTX2(rgba []byte, w, h int) ([]byte, error) {
	if f.ktx2Err != nil {
		return nil, f.ktx2Err
	}
	return []byte("ktx2-payload"), nil
}

func (f fakeCodec) EncodeJPEG(rgb []byte, w, h int, quality int) ([]byte, error) {
	if f.jpegErr != nil {
		return nil, f.jpegErr
	}
	return []byte(fmt.Sprintf("jpeg-payload-q%d-len%d", quality, len(rgb))), nil
}

func solidRGBA(w, h int) []byte {
	pixels := make([]byte, w*h*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 200, 100, 50, 255
	}
	return pixels
}

func TestWrapper_EncodeBaseColor_PrefersKTX2(t *testing.T) {
	w := New(fakeCodec{}, 0)
	out, kind, err := w.EncodeBaseColor(solidRGBA(4, 4), 4, 4)
	if err != nil {
		t.Fatalf("EncodeBaseColor: %v", err)
	}
	if kind != "ktx2" || string(out) != "ktx2-payload" {
		t.Fatalf("expected ktx2 payload, got kind=%s out=%q", kind, out)
	}
}

func TestWrapper_EncodeBaseColor_FallsBackToJPEG(t *testing.T) {
	w := New(fakeCodec{ktx2Err: fmt.Errorf("ktx2 unsupported")}, 90)
	out, kind, err := w.EncodeBaseColor(solidRGBA(4, 4), 4, 4)
	if err != nil {
		t.Fatalf("EncodeBaseColor: %v", err)
	}
	if kind != "jpeg" {
		t.Fatalf("expected jpeg fallback, got kind=%s", kind)
	}
	if string(out) != "jpeg-payload-q90-len48" {
		t.Fatalf("unexpected jpeg payload: %q", out)
	}
}

func TestWrapper_EncodeBaseColor_BothFail(t *testing.T) {
	w := New(fakeCodec{ktx2Err: fmt.Errorf("a"), jpegErr: fmt.Errorf("b")}, 0)
	if _, _, err := w.EncodeBaseColor(solidRGBA(2, 2), 2, 2); err == nil {
		t.Fatalf("expected error when both codecs fail")
	}
}

func TestResize_NoopWhenAlreadySmall(t *testing.T) {
	pixels := solidRGBA(10, 10)
	out, ow, oh := Resize(pixels, 10, 10, 256, 256)
	if ow != 10 || oh != 10 || len(out) != len(pixels) {
		t.Fatalf("expected unchanged dimensions, got %dx%d len=%d", ow, oh, len(out))
	}
}

func TestResize_DownscalesPreservingAspect(t *testing.T) {
	pixels := solidRGBA(512, 256)
	out, ow, oh := Resize(pixels, 512, 256, 128, 128)
	if ow > 128 || oh > 128 {
		t.Fatalf("expected both dimensions bounded to 128, got %dx%d", ow, oh)
	}
	if ow != 128 {
		t.Fatalf("expected width-bound scaling for a wide image, got %dx%d", ow, oh)
	}
	if len(out) != ow*oh*4 {
		t.Fatalf("expected tightly packed RGBA output, got %d bytes for %dx%d", len(out), ow, oh)
	}
}

func TestWritePreview_WritesWebPNextToTile(t *testing.T) {
	store := blobstore.NewMemory()
	ctx := context.Background()
	pixels := solidRGBA(16, 16)

	if err := WritePreview(ctx, store, "task-prefix", "0/0_0_0", pixels, 16, 16); err != nil {
		t.Fatalf("WritePreview: %v", err)
	}
	ok, err := store.Exists(ctx, "task-prefix", "0/0_0_0.preview.webp")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatalf("expected preview.webp to exist alongside the tile payload")
	}
}
