package testutil

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// Stored pixel values in DICOM CT fixtures are unsigned; the baked-in
// rescale intercept maps them back to Hounsfield units on load.
const dicomRescaleIntercept = 1024

// implicitVRLittleEndian is the transfer syntax of the fixture files,
// null-padded to even length.
const implicitVRLittleEndian = "1.2.840.10008.1.2\x00"

// WriteDICOMSlice writes a minimal single-frame CT DICOM file: implicit
// VR little endian, 16-bit stored values with rescale slope 1 and
// intercept -1024.
func WriteDICOMSlice(t *testing.T, path string, rows, cols, instance int, stored []uint16) {
	t.Helper()
	if len(stored) != rows*cols {
		t.Fatalf("stored pixel count %d does not match %dx%d", len(stored), rows, cols)
	}

	buf := make([]byte, 128, 1024+2*len(stored))
	buf = append(buf, "DICM"...)

	tsElem := dicomMetaElement(0x0002, 0x0010, "UI", []byte(implicitVRLittleEndian))
	buf = append(buf, dicomMetaElement(0x0002, 0x0000, "UL", dicomUint32(uint32(len(tsElem))))...)
	buf = append(buf, tsElem...)

	buf = append(buf, dicomElement(0x0020, 0x0013, dicomText(strconv.Itoa(instance)))...) // InstanceNumber
	buf = append(buf, dicomElement(0x0028, 0x0002, dicomUint16(1))...)                    // SamplesPerPixel
	buf = append(buf, dicomElement(0x0028, 0x0010, dicomUint16(uint16(rows)))...)
	buf = append(buf, dicomElement(0x0028, 0x0011, dicomUint16(uint16(cols)))...)
	buf = append(buf, dicomElement(0x0028, 0x0100, dicomUint16(16))...) // BitsAllocated
	buf = append(buf, dicomElement(0x0028, 0x0101, dicomUint16(16))...) // BitsStored
	buf = append(buf, dicomElement(0x0028, 0x0102, dicomUint16(15))...) // HighBit
	buf = append(buf, dicomElement(0x0028, 0x0103, dicomUint16(0))...)  // PixelRepresentation
	buf = append(buf, dicomElement(0x0028, 0x1052, dicomText("-1024"))...)
	buf = append(buf, dicomElement(0x0028, 0x1053, dicomText("1"))...)

	px := make([]byte, 2*len(stored))
	for i, v := range stored {
		binary.LittleEndian.PutUint16(px[2*i:], v)
	}
	buf = append(buf, dicomElement(0x7FE0, 0x0010, px)...)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating fixture directory: %v", err)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("writing dicom fixture: %v", err)
	}
}

// MakeStoredSlice builds stored pixel values for one slice: a bright
// centered square over a flat background, given in Hounsfield units.
func MakeStoredSlice(rows, cols int, backgroundHU, foregroundHU int) []uint16 {
	stored := make([]uint16, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			hu := backgroundHU
			if x > cols/4 && x < 3*cols/4 && y > rows/4 && y < 3*rows/4 {
				hu = foregroundHU
			}
			stored[y*cols+x] = uint16(hu + dicomRescaleIntercept)
		}
	}
	return stored
}

// dicomMetaElement encodes one explicit-VR element of the file meta group.
func dicomMetaElement(group, elem uint16, vr string, value []byte) []byte {
	out := make([]byte, 8, 8+len(value))
	binary.LittleEndian.PutUint16(out[0:2], group)
	binary.LittleEndian.PutUint16(out[2:4], elem)
	copy(out[4:6], vr)
	binary.LittleEndian.PutUint16(out[6:8], uint16(len(value)))
	return append(out, value...)
}

// dicomElement encodes one implicit-VR dataset element.
func dicomElement(group, elem uint16, value []byte) []byte {
	out := make([]byte, 8, 8+len(value))
	binary.LittleEndian.PutUint16(out[0:2], group)
	binary.LittleEndian.PutUint16(out[2:4], elem)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(value)))
	return append(out, value...)
}

// dicomText space-pads string values to the even length the format requires.
func dicomText(s string) []byte {
	if len(s)%2 != 0 {
		s += " "
	}
	return []byte(s)
}

func dicomUint16(v uint16) []byte {
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, v)
	return out
}

func dicomUint32(v uint32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, v)
	return out
}
