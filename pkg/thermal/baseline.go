package thermal

import "sort"

// RoomBaseline estimates the ambient room temperature of a grid as the median
// of all cell temperatures. The median, not the mean, is used deliberately:
// a handful of hot cells (people) or cold cells (a draft, a window) would
// bias a simple average, while the bulk of the grid sees the actual room.
//
// An even cell count averages the two middle values. The baseline is
// recomputed fresh for every frame; there is no smoothing across frames.
//
// Returns ErrNoData for an empty grid. Decoded frames are never empty, so in
// practice this path is unreachable, but it stays a defined, recoverable
// outcome rather than a panic.
func RoomBaseline(cells []float64) (float64, error) {
	if len(cells) == 0 {
		return 0, ErrNoData
	}

	sorted := make([]float64, len(cells))
	copy(sorted, cells)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], nil
	}
	return (sorted[mid-1] + sorted[mid]) / 2, nil
}
