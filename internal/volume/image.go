package volume

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // sources ship both JPEG and PNG slice exports
	_ "image/png"
	"os"
)

// LoadImageSlice decodes a single 2D slice export (PNG or JPEG) into
// raw grayscale intensities. 16-bit grayscale is preserved at full
// precision; color inputs are converted through the 16-bit gray model.
func LoadImageSlice(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float64, 0, w*h)

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w]
			for _, p := range row {
				data = append(data, float64(p))
			}
		}
	case *image.Gray16:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				data = append(data, float64(src.Gray16At(x, y).Y))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				data = append(data, float64(g.Y))
			}
		}
	}

	return &Volume{Data: data, Width: w, Height: h, Depth: 1}, nil
}
