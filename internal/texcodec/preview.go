package texcodec

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gen2brain/webp"

	"github.com/pspoerri/tileslicer/internal/ioiface"
)

// previewMaxDimension bounds debug thumbnails well below any real base
// texture; this path exists for operators eyeballing material assignment,
// not for anything a viewer loads.
const previewMaxDimension = 256

// WritePreview resizes pixels down to a thumbnail and writes it through
// store as "{relPathPrefix}.preview.webp". Errors are returned for the
// caller to log; texture_preview is an optional debug toggle and a failure
// here must never fail the tile or the task.
func WritePreview(ctx context.Context, store ioiface.BlobStore, bucketOrPrefix, relPathPrefix string, pixels []byte, width, height int) error {
	small, sw, sh := Resize(pixels, width, height, previewMaxDimension, previewMaxDimension)
	img := toImage(small, sw, sh)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: 75}); err != nil {
		return fmt.Errorf("texcodec: encoding preview webp: %w", err)
	}

	key := relPathPrefix + ".preview.webp"
	if err := store.Put(ctx, bucketOrPrefix, key, buf.Bytes(), "image/webp"); err != nil {
		return fmt.Errorf("texcodec: writing preview %s: %w", key, err)
	}
	return nil
}
