// Package window converts raw CT intensities into displayable 8-bit
// image data. Every processor handling Hounsfield-unit data goes
// through the same Window so slices look numerically consistent across
// sources.
package window

// Window is a fixed Hounsfield-unit display window.
type Window struct {
	Width float64 `yaml:"width"`
	Level float64 `yaml:"level"`
}

// DefaultLung is the standard lung window used for chest CT.
var DefaultLung = Window{Width: 1500, Level: -600}

// Bounds returns the low and high clipping bounds of the window.
func (w Window) Bounds() (low, high float64) {
	half := w.Width / 2
	return w.Level - half, w.Level + half
}

// Normalize maps raw intensities into [0, 255]. Values outside the
// window are clipped to its bounds, values inside are rescaled
// linearly. A window of zero width degenerates to a step at the level,
// without dividing by zero.
func (w Window) Normalize(data []float64) []uint8 {
	low, high := w.Bounds()
	out := make([]uint8, len(data))

	if high <= low {
		for i, v := range data {
			if v > low {
				out[i] = 255
			}
		}
		return out
	}

	scale := 255.0 / (high - low)
	for i, v := range data {
		switch {
		case v <= low:
			out[i] = 0
		case v >= high:
			out[i] = 255
		default:
			out[i] = uint8((v-low)*scale + 0.5)
		}
	}
	return out
}

// RescaleMinMax maps arbitrary raw intensities (non-HU sources, e.g.
// 16-bit grayscale exports) into [0, 255] by the observed range.
// Constant input maps to a flat zero image.
func RescaleMinMax(data []float64) []uint8 {
	out := make([]uint8, len(data))
	if len(data) == 0 {
		return out
	}

	min, max := data[0], data[0]
	for _, v := range data[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max <= min {
		return out
	}

	scale := 255.0 / (max - min)
	for i, v := range data {
		out[i] = uint8((v-min)*scale + 0.5)
	}
	return out
}
