package window

import "gonum.org/v1/gonum/stat"

// Degenerate-slice thresholds, in normalized 8-bit units. A slice whose
// intensity barely varies carries no tissue worth keeping.
const (
	emptyVarianceThreshold = 1.0
	emptyMeanCeiling       = 250.0
)

// IsEmptySlice reports whether a normalized slice is degenerate: nearly
// constant intensity (air, padding, fully masked-out) or saturated.
func IsEmptySlice(pixels []uint8) bool {
	if len(pixels) == 0 {
		return true
	}

	vals := make([]float64, len(pixels))
	for i, p := range pixels {
		vals[i] = float64(p)
	}

	mean, variance := stat.MeanVariance(vals, nil)
	if variance < emptyVarianceThreshold {
		return true
	}
	return mean > emptyMeanCeiling
}

// MaskCoverage returns the fraction of nonzero values in a segmentation
// mask slice. Used by sources that only keep slices with lesion tissue.
func MaskCoverage(mask []float64) float64 {
	if len(mask) == 0 {
		return 0
	}
	nonzero := 0
	for _, v := range mask {
		if v != 0 {
			nonzero++
		}
	}
	return float64(nonzero) / float64(len(mask))
}
