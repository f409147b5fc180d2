package volume

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// NIfTI-1: a fixed 348-byte header followed by a raw voxel array.
// Only the handful of fields the builder needs are decoded here.
const niftiHeaderSize = 348

// NIfTI-1 datatype codes.
const (
	niftiTypeUint8   = 2
	niftiTypeInt16   = 4
	niftiTypeInt32   = 8
	niftiTypeFloat32 = 16
	niftiTypeFloat64 = 64
	niftiTypeInt8    = 256
	niftiTypeUint16  = 512
)

// LoadNIfTI reads a .nii or .nii.gz volume. Scaling (scl_slope,
// scl_inter) is applied so the returned intensities are in Hounsfield
// units for CT sources. For 4D files only the first volume is read.
func LoadNIfTI(path string) (*Volume, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading nifti file: %w", err)
	}

	if strings.HasSuffix(path, ".gz") || (len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b) {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer zr.Close()
		raw, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("decompressing nifti: %w", err)
		}
	}

	if len(raw) < niftiHeaderSize {
		return nil, fmt.Errorf("file too small for nifti header: %d bytes", len(raw))
	}

	// Byte order is detected from sizeof_hdr, which is always 348.
	var order binary.ByteOrder = binary.LittleEndian
	if order.Uint32(raw[0:4]) != niftiHeaderSize {
		order = binary.BigEndian
		if order.Uint32(raw[0:4]) != niftiHeaderSize {
			return nil, fmt.Errorf("not a nifti-1 file: bad sizeof_hdr")
		}
	}

	magic := string(raw[344:347])
	if magic != "n+1" && magic != "ni1" {
		return nil, fmt.Errorf("not a nifti-1 file: bad magic %q", magic)
	}

	dim := make([]int16, 8)
	for i := range dim {
		dim[i] = int16(order.Uint16(raw[40+2*i : 42+2*i]))
	}
	if dim[0] < 2 || dim[1] <= 0 || dim[2] <= 0 {
		return nil, fmt.Errorf("unsupported nifti dimensions %v", dim[:4])
	}
	nx, ny := int(dim[1]), int(dim[2])
	nz := 1
	if dim[0] >= 3 && dim[3] > 0 {
		nz = int(dim[3])
	}

	datatype := int16(order.Uint16(raw[70:72]))
	voxOffset := int(math.Float32frombits(order.Uint32(raw[108:112])))
	slope := float64(math.Float32frombits(order.Uint32(raw[112:116])))
	inter := float64(math.Float32frombits(order.Uint32(raw[116:120])))
	if slope == 0 {
		slope = 1
	}
	if voxOffset < niftiHeaderSize {
		voxOffset = niftiHeaderSize + 4
	}
	if voxOffset > len(raw) {
		return nil, fmt.Errorf("nifti vox_offset %d beyond file size %d", voxOffset, len(raw))
	}

	voxels := nx * ny * nz
	data, err := decodeVoxels(raw[voxOffset:], order, datatype, voxels)
	if err != nil {
		return nil, err
	}
	if slope != 1 || inter != 0 {
		for i := range data {
			data[i] = data[i]*slope + inter
		}
	}

	return &Volume{Data: data, Width: nx, Height: ny, Depth: nz}, nil
}

func decodeVoxels(raw []byte, order binary.ByteOrder, datatype int16, voxels int) ([]float64, error) {
	size := 0
	switch datatype {
	case niftiTypeUint8, niftiTypeInt8:
		size = 1
	case niftiTypeInt16, niftiTypeUint16:
		size = 2
	case niftiTypeInt32, niftiTypeFloat32:
		size = 4
	case niftiTypeFloat64:
		size = 8
	default:
		return nil, fmt.Errorf("unsupported nifti datatype %d", datatype)
	}
	if len(raw) < voxels*size {
		return nil, fmt.Errorf("nifti data truncated: want %d bytes, have %d", voxels*size, len(raw))
	}

	data := make([]float64, voxels)
	for i := 0; i < voxels; i++ {
		b := raw[i*size:]
		switch datatype {
		case niftiTypeUint8:
			data[i] = float64(b[0])
		case niftiTypeInt8:
			data[i] = float64(int8(b[0]))
		case niftiTypeInt16:
			data[i] = float64(int16(order.Uint16(b)))
		case niftiTypeUint16:
			data[i] = float64(order.Uint16(b))
		case niftiTypeInt32:
			data[i] = float64(int32(order.Uint32(b)))
		case niftiTypeFloat32:
			data[i] = float64(math.Float32frombits(order.Uint32(b)))
		case niftiTypeFloat64:
			data[i] = math.Float64frombits(order.Uint64(b))
		}
	}
	return data, nil
}
