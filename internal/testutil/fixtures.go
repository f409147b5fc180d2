// Package testutil builds synthetic scan fixtures for tests: NIfTI
// volumes, grayscale slice exports and stub processors.
package testutil

import (
	"compress/gzip"
	"encoding/binary"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/covidct/builder/internal/volume"
)

// MakeVolume creates a deterministic test volume with a bright centered
// square on each slice so slices are never degenerate.
func MakeVolume(width, height, depth int, background, foreground float64) *volume.Volume {
	data := make([]float64, width*height*depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := background
				if x > width/4 && x < 3*width/4 && y > height/4 && y < 3*height/4 {
					v = foreground
				}
				data[z*width*height+y*width+x] = v
			}
		}
	}
	return &volume.Volume{Data: data, Width: width, Height: height, Depth: depth}
}

// WriteNIfTI writes a minimal NIfTI-1 file (float32, no scaling) at
// path, gzip-compressed when the path ends in .gz.
func WriteNIfTI(t *testing.T, path string, vol *volume.Volume) {
	t.Helper()

	const voxOffset = 352
	header := make([]byte, voxOffset)
	binary.LittleEndian.PutUint32(header[0:4], 348)
	// dim[0]=3 plus the three spatial extents.
	binary.LittleEndian.PutUint16(header[40:42], 3)
	binary.LittleEndian.PutUint16(header[42:44], uint16(vol.Width))
	binary.LittleEndian.PutUint16(header[44:46], uint16(vol.Height))
	binary.LittleEndian.PutUint16(header[46:48], uint16(vol.Depth))
	binary.LittleEndian.PutUint16(header[70:72], 16) // float32
	binary.LittleEndian.PutUint16(header[72:74], 32) // bitpix
	binary.LittleEndian.PutUint32(header[108:112], math.Float32bits(voxOffset))
	binary.LittleEndian.PutUint32(header[112:116], math.Float32bits(1)) // scl_slope
	copy(header[344:348], "n+1\x00")

	body := make([]byte, 0, voxOffset+4*len(vol.Data))
	body = append(body, header...)
	for _, v := range vol.Data {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(v)))
		body = append(body, buf[:]...)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating fixture directory: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating nifti fixture: %v", err)
	}
	defer f.Close()

	if filepath.Ext(path) == ".gz" {
		zw := gzip.NewWriter(f)
		if _, err := zw.Write(body); err != nil {
			t.Fatalf("writing gzipped nifti fixture: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("closing gzip writer: %v", err)
		}
		return
	}
	if _, err := f.Write(body); err != nil {
		t.Fatalf("writing nifti fixture: %v", err)
	}
}

// WriteGrayPNG writes an 8-bit grayscale PNG with a bright centered
// square so the slice survives the emptiness check.
func WriteGrayPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	writePNGFixture(t, path, fillGray(width, height))
}

func fillGray(width, height int) image.Image {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(20)
			if x > width/4 && x < 3*width/4 && y > height/4 && y < 3*height/4 {
				v = 200
			}
			img.Pix[y*img.Stride+x] = v
		}
	}
	return img
}

func writePNGFixture(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating fixture directory: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating png fixture: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encoding png fixture: %v", err)
	}
}
