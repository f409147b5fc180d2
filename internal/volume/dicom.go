package volume

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Rescale and ordering tags used to turn stored pixel values into
// Hounsfield units and stack slices in acquisition order.
var (
	tagRescaleIntercept = tag.Tag{Group: 0x0028, Element: 0x1052}
	tagRescaleSlope     = tag.Tag{Group: 0x0028, Element: 0x1053}
	tagInstanceNumber   = tag.Tag{Group: 0x0020, Element: 0x0013}
)

type dicomSlice struct {
	data     []float64
	rows     int
	cols     int
	instance int
}

// LoadDICOMSeries reads every .dcm file directly under dir, orders the
// slices by InstanceNumber and stacks them into one volume. A corrupt
// file fails the whole series; callers treat that as a per-case input
// error and skip the case.
func LoadDICOMSeries(dir string) (*Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading series directory: %w", err)
	}

	slices := make([]dicomSlice, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".dcm") {
			continue
		}
		s, err := readDICOMSlice(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("slice %s: %w", e.Name(), err)
		}
		slices = append(slices, s)
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("no dicom files in %s", dir)
	}

	sort.Slice(slices, func(i, j int) bool {
		return slices[i].instance < slices[j].instance
	})

	rows, cols := slices[0].rows, slices[0].cols
	data := make([]float64, 0, rows*cols*len(slices))
	for _, s := range slices {
		if s.rows != rows || s.cols != cols {
			return nil, fmt.Errorf("inconsistent slice dimensions %dx%d vs %dx%d", s.rows, s.cols, rows, cols)
		}
		data = append(data, s.data...)
	}

	return &Volume{Data: data, Width: cols, Height: rows, Depth: len(slices)}, nil
}

func readDICOMSlice(path string) (dicomSlice, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return dicomSlice{}, fmt.Errorf("parsing dicom: %w", err)
	}

	px, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return dicomSlice{}, fmt.Errorf("no pixel data: %w", err)
	}
	info := dicom.MustGetPixelDataInfo(px.Value)
	if len(info.Frames) == 0 {
		return dicomSlice{}, fmt.Errorf("pixel data has no frames")
	}
	native, err := info.Frames[0].GetNativeFrame()
	if err != nil {
		return dicomSlice{}, fmt.Errorf("decoding native frame: %w", err)
	}

	slope := findDecimal(ds, tagRescaleSlope, 1)
	intercept := findDecimal(ds, tagRescaleIntercept, 0)

	data := make([]float64, len(native.Data))
	for i, samples := range native.Data {
		data[i] = float64(samples[0])*slope + intercept
	}

	return dicomSlice{
		data:     data,
		rows:     native.Rows,
		cols:     native.Cols,
		instance: findInt(ds, tagInstanceNumber, 0),
	}, nil
}

// findDecimal reads a DS (decimal string) element, falling back to def
// when the element is absent or malformed.
func findDecimal(ds dicom.Dataset, t tag.Tag, def float64) float64 {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return def
	}
	strs, ok := el.Value.GetValue().([]string)
	if !ok || len(strs) == 0 {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(strs[0]), 64)
	if err != nil {
		return def
	}
	return v
}

// findInt reads an IS (integer string) or int-valued element.
func findInt(ds dicom.Dataset, t tag.Tag, def int) int {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return def
	}
	switch v := el.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0]
		}
	case []string:
		if len(v) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(v[0])); err == nil {
				return n
			}
		}
	}
	return def
}
