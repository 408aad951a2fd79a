// Package thermal implements the frame-level core of the occupancy pipeline.
//
// It decodes sensor upload payloads into temperature grids, estimates the
// per-frame room baseline, classifies and groups warm cells into connected
// components, and expands frames into per-pixel color records for display.
// All operations are pure: a Frame is immutable once decoded and nothing in
// this package keeps state across frames.
package thermal

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedFrame indicates a payload that cannot be decoded into a valid
// temperature grid: bad shape, bad dimensions, or non-finite cell values.
// Malformed payloads are rejected before any downstream state is touched.
var ErrMalformedFrame = errors.New("malformed frame")

// ErrNoData indicates a computation with nothing to operate on, such as a
// baseline request over an empty grid.
var ErrNoData = errors.New("no data")

// Frame is one full grid reading from a thermal sensor at one point in time.
//
// Cells holds one temperature per grid cell in row-major order, so
// len(Cells) == Width*Height always holds for a decoded frame. MinTemp and
// MaxTemp are the display window reported by the sensor; individual cells are
// not guaranteed to fall inside it and are clamped where that matters
// (color mapping), never rejected for it.
type Frame struct {
	SensorID string
	Width    int
	Height   int
	MinTemp  float64
	MaxTemp  float64
	Cells    []float64
}

// CompactPayload is the compact wire shape uploaded by the sensor firmware:
// explicit dimensions plus a flat row-major temperature array.
type CompactPayload struct {
	SensorID string    `json:"sensor_id,omitempty"`
	Width    int       `json:"w"`
	Height   int       `json:"h"`
	MinTemp  float64   `json:"min"`
	MaxTemp  float64   `json:"max"`
	Temps    []float64 `json:"t"`
}

// Validate checks the Frame invariants. It returns an error wrapping
// ErrMalformedFrame when dimensions are non-positive, the cell count does not
// match Width*Height, or any cell is NaN or infinite.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrMalformedFrame, f.Width, f.Height)
	}
	if len(f.Cells) != f.Width*f.Height {
		return fmt.Errorf("%w: %d cells for %dx%d grid (want %d)",
			ErrMalformedFrame, len(f.Cells), f.Width, f.Height, f.Width*f.Height)
	}
	for i, v := range f.Cells {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite temperature at cell %d", ErrMalformedFrame, i)
		}
	}
	return nil
}

// At returns the temperature at the given row and column.
// The caller is responsible for bounds; this is a plain index helper.
func (f *Frame) At(row, col int) float64 {
	return f.Cells[row*f.Width+col]
}

// Compact re-serializes the frame into the compact wire shape. Decoding a
// compact payload and calling Compact on the result round-trips the original
// dimensions and cell sequence.
func (f *Frame) Compact() CompactPayload {
	temps := make([]float64, len(f.Cells))
	copy(temps, f.Cells)
	return CompactPayload{
		SensorID: f.SensorID,
		Width:    f.Width,
		Height:   f.Height,
		MinTemp:  f.MinTemp,
		MaxTemp:  f.MaxTemp,
		Temps:    temps,
	}
}

// cellRange returns the minimum and maximum of a non-empty cell slice.
func cellRange(cells []float64) (lo, hi float64) {
	lo, hi = cells[0], cells[0]
	for _, v := range cells[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
