package thermal

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// DecodePayload decodes an uploaded JSON payload into a Frame.
//
// Two historical wire shapes are accepted and normalized:
//
//   - compact, as sent by the sensor firmware:
//     {"sensor_id":"living-room","w":32,"h":24,"min":19.2,"max":34.1,"t":[...]}
//   - expanded, the pre-rendered per-pixel shape older clients uploaded:
//     {"width":32,"height":24,"pixels":[{"row":0,"col":0,"temp":21.5,...},...]}
//
// The shape is detected explicitly rather than by trial decoding: a payload
// carrying the compact "t"/"w"/"h" keys is treated as compact even when an
// expanded pixel list is also present, per the upload contract. Anything else
// fails with an error wrapping ErrMalformedFrame; no partial Frame is ever
// returned.
func DecodePayload(raw []byte) (*Frame, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedFrame)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformedFrame)
	}

	// Compact keys take precedence when both shapes are present.
	if doc.Get("t").Exists() || (doc.Get("w").Exists() && doc.Get("h").Exists()) {
		return decodeCompact(doc)
	}
	if doc.Get("pixels").Exists() {
		return decodeExpanded(doc)
	}
	return nil, fmt.Errorf("%w: unrecognized payload shape", ErrMalformedFrame)
}

func decodeCompact(doc gjson.Result) (*Frame, error) {
	width := doc.Get("w")
	height := doc.Get("h")
	temps := doc.Get("t")
	if !width.Exists() || !height.Exists() || !temps.Exists() {
		return nil, fmt.Errorf("%w: compact payload missing w/h/t", ErrMalformedFrame)
	}
	if !temps.IsArray() {
		return nil, fmt.Errorf("%w: t is not an array", ErrMalformedFrame)
	}

	elems := temps.Array()
	cells := make([]float64, 0, len(elems))
	for i, e := range elems {
		if e.Type != gjson.Number {
			return nil, fmt.Errorf("%w: t[%d] is not a number", ErrMalformedFrame, i)
		}
		cells = append(cells, e.Float())
	}

	f := &Frame{
		SensorID: doc.Get("sensor_id").String(),
		Width:    int(width.Int()),
		Height:   int(height.Int()),
		Cells:    cells,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	f.MinTemp, f.MaxTemp = cellRange(cells)
	if v := doc.Get("min"); v.Exists() {
		f.MinTemp = v.Float()
	}
	if v := doc.Get("max"); v.Exists() {
		f.MaxTemp = v.Float()
	}
	return f, nil
}

func decodeExpanded(doc gjson.Result) (*Frame, error) {
	w64 := doc.Get("width").Int()
	h64 := doc.Get("height").Int()
	if w64 <= 0 || h64 <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrMalformedFrame, w64, h64)
	}

	pixels := doc.Get("pixels")
	if !pixels.IsArray() {
		return nil, fmt.Errorf("%w: pixels is not an array", ErrMalformedFrame)
	}

	// The pixel count bounds the claimed dimensions before anything is
	// allocated, so a tiny payload cannot demand a huge grid. Full coverage
	// means n == width*height, which also caps each dimension at n.
	n := int64(len(pixels.Array()))
	if w64 > n || h64 > n {
		return nil, fmt.Errorf("%w: %d pixels for %dx%d grid", ErrMalformedFrame, n, w64, h64)
	}
	if w64*h64 != n {
		return nil, fmt.Errorf("%w: %d pixels for %dx%d grid (want %d)",
			ErrMalformedFrame, n, w64, h64, w64*h64)
	}
	width, height := int(w64), int(h64)

	cells := make([]float64, width*height)
	seen := make([]bool, width*height)
	var badPixel error
	pixels.ForEach(func(_, p gjson.Result) bool {
		row := p.Get("row")
		col := p.Get("col")
		temp := p.Get("temp")
		if !row.Exists() || !col.Exists() || !temp.Exists() {
			badPixel = fmt.Errorf("%w: pixel missing row/col/temp", ErrMalformedFrame)
			return false
		}
		r, c := int(row.Int()), int(col.Int())
		if r < 0 || r >= height || c < 0 || c >= width {
			badPixel = fmt.Errorf("%w: pixel (%d,%d) outside %dx%d grid", ErrMalformedFrame, r, c, width, height)
			return false
		}
		idx := r*width + c
		if seen[idx] {
			badPixel = fmt.Errorf("%w: duplicate pixel (%d,%d)", ErrMalformedFrame, r, c)
			return false
		}
		seen[idx] = true
		cells[idx] = temp.Float()
		return true
	})
	if badPixel != nil {
		return nil, badPixel
	}

	f := &Frame{
		SensorID: doc.Get("sensor_id").String(),
		Width:    width,
		Height:   height,
		Cells:    cells,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	f.MinTemp, f.MaxTemp = cellRange(cells)
	if v := doc.Get("min_temp"); v.Exists() {
		f.MinTemp = v.Float()
	}
	if v := doc.Get("max_temp"); v.Exists() {
		f.MaxTemp = v.Float()
	}
	return f, nil
}
