package thermal

// Pixel is one cell of an expanded frame, carrying its coordinates, raw
// temperature, and display color. The JSON keys match what the live page and
// older clients expect.
type Pixel struct {
	Row  int     `json:"row"`
	Col  int     `json:"col"`
	Temp float64 `json:"temp"`
	R    uint8   `json:"r"`
	G    uint8   `json:"g"`
	B    uint8   `json:"b"`
}

// ExpandedFrame is the full per-pixel rendition of a frame used for display.
type ExpandedFrame struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	MinTemp float64 `json:"min_temp"`
	MaxTemp float64 `json:"max_temp"`
	Pixels  []Pixel `json:"pixels"`
}

// TempColor maps a temperature to an RGB color over the window [lo, hi] using
// a four-segment blue → green → yellow → red ramp. Temperatures outside the
// window are clamped onto its edges; a degenerate window (hi == lo) maps
// everything to mid-gray.
func TempColor(temp, lo, hi float64) (r, g, b uint8) {
	if temp < lo {
		temp = lo
	}
	if temp > hi {
		temp = hi
	}
	if hi == lo {
		return 128, 128, 128
	}

	n := (temp - lo) / (hi - lo)
	switch {
	case n < 0.25:
		return 0, uint8(n * 4 * 255), 255
	case n < 0.5:
		return 0, 255, uint8((1 - (n-0.25)*4) * 255)
	case n < 0.75:
		return uint8((n - 0.5) * 4 * 255), 255, 0
	default:
		return 255, uint8((1 - (n-0.75)*4) * 255), 0
	}
}

// ExpandFrame renders a frame into its per-pixel display form, coloring each
// cell with TempColor over the frame's reported temperature window.
func ExpandFrame(f *Frame) ExpandedFrame {
	pixels := make([]Pixel, 0, len(f.Cells))
	for i, temp := range f.Cells {
		r, g, b := TempColor(temp, f.MinTemp, f.MaxTemp)
		pixels = append(pixels, Pixel{
			Row:  i / f.Width,
			Col:  i % f.Width,
			Temp: temp,
			R:    r,
			G:    g,
			B:    b,
		})
	}
	return ExpandedFrame{
		Width:   f.Width,
		Height:  f.Height,
		MinTemp: f.MinTemp,
		MaxTemp: f.MaxTemp,
		Pixels:  pixels,
	}
}
