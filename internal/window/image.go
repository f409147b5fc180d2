package window

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
)

// ToGray wraps normalized pixel data in an 8-bit grayscale image.
// The pixel slice is used directly, not copied.
func ToGray(pixels []uint8, width, height int) (*image.Gray, error) {
	if len(pixels) != width*height {
		return nil, fmt.Errorf("pixel count %d does not match %dx%d", len(pixels), width, height)
	}
	return &image.Gray{
		Pix:    pixels,
		Stride: width,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

// ResizeSquare resamples an image to size x size with Lanczos filtering.
// Returns the input unchanged when it already has the target size.
func ResizeSquare(img image.Image, size int) image.Image {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return img
	}
	return imaging.Resize(img, size, size, imaging.Lanczos)
}

// WritePNG encodes an image to path, overwriting any previous file so
// that re-runs stay idempotent.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating image file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}
