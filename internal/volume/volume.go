// Package volume loads scans from the on-disk formats the public
// sources ship: DICOM series, NIfTI-1 volumes and plain 2D image
// exports. All readers produce the same Volume type so processors can
// slice without caring about the origin format.
package volume

import "fmt"

// Volume is a scan as raw intensities in row-major order, slice-major
// along Z: index = z*Width*Height + y*Width + x.
type Volume struct {
	Data   []float64
	Width  int
	Height int
	Depth  int
}

// Slice returns the raw intensities of cross-section z. The returned
// slice aliases the volume data.
func (v *Volume) Slice(z int) ([]float64, error) {
	if z < 0 || z >= v.Depth {
		return nil, fmt.Errorf("slice %d out of range [0, %d)", z, v.Depth)
	}
	n := v.Width * v.Height
	return v.Data[z*n : (z+1)*n], nil
}
