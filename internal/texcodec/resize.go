package texcodec

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Resize downsamples RGBA pixel data (tightly packed, width*height*4 bytes)
// to at most maxWidth x maxHeight, preserving aspect ratio, via
// golang.org/x/image/draw's CatmullRom scaler. Returns the input unchanged
// if it already fits.
func Resize(pixels []byte, width, height, maxWidth, maxHeight int) ([]byte, int, int) {
	if width <= maxWidth && height <= maxHeight {
		return pixels, width, height
	}

	src := &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}

	ow, oh := scaledDimensions(width, height, maxWidth, maxHeight)
	dst := image.NewRGBA(image.Rect(0, 0, ow, oh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	return dst.Pix, ow, oh
}

func scaledDimensions(width, height, maxWidth, maxHeight int) (int, int) {
	wScale := float64(maxWidth) / float64(width)
	hScale := float64(maxHeight) / float64(height)
	scale := wScale
	if hScale < scale {
		scale = hScale
	}
	ow := int(float64(width) * scale)
	oh := int(float64(height) * scale)
	if ow < 1 {
		ow = 1
	}
	if oh < 1 {
		oh = 1
	}
	return ow, oh
}

// toImage is a small helper for the preview path, which needs a concrete
// image.Image rather than raw pixels to hand to an encoder.
func toImage(pixels []byte, width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.RGBA{Pix: pixels, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}, image.Point{}, draw.Src)
	return img
}
