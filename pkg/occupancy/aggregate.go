// Package occupancy turns labeled warm components into per-frame occupancy
// estimates: it filters components by plausible human-cluster size, computes
// cluster centroids, and defines the sample record persisted by the store.
package occupancy

import (
	"time"

	"github.com/occugrid/occugrid/pkg/thermal"
)

// Cluster is one surviving warm component, reduced to its size and centroid.
// IDs are unique within a single frame's segmentation only; they are not
// stable across frames (the system counts people, it does not track them).
type Cluster struct {
	ID        int `json:"id"`
	Size      int `json:"size"`
	CenterRow int `json:"centerRow"`
	CenterCol int `json:"centerCol"`
}

// Sample is one occupancy observation, created once per processed frame and
// immutable after it is appended to the store. RoomTemp is a pointer because
// the baseline can legitimately be absent (an empty grid yields no baseline).
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Occupancy int       `json:"occupancy"`
	RoomTemp  *float64  `json:"roomTemp,omitempty"`
	Clusters  []Cluster `json:"clusters"`
}

// FilterConfig bounds the cell count a component must have to count as a
// person-shaped cluster.
type FilterConfig struct {
	// MinClusterSize rejects single-pixel sensor noise.
	MinClusterSize int

	// MaxClusterSize rejects large contiguous hot regions, such as a
	// sunlit wall, that are not plausible human silhouettes at this
	// sensor's resolution.
	MaxClusterSize int
}

// DefaultFilterConfig returns the production-default cluster size bounds.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinClusterSize: 3,
		MaxClusterSize: 200,
	}
}

// Aggregate filters labeled components by cluster size and reduces the
// survivors to clusters with integer centroids. The occupancy estimate is
// the number of survivors. Aggregate never fails: no components, or none
// surviving the filter, yields occupancy 0 with an empty cluster list.
// The input is not modified.
func Aggregate(components []thermal.Component, cfg FilterConfig) (int, []Cluster) {
	clusters := make([]Cluster, 0, len(components))
	for _, comp := range components {
		size := comp.Size()
		if size < cfg.MinClusterSize || size > cfg.MaxClusterSize {
			continue
		}

		rowSum, colSum := 0, 0
		for _, c := range comp.Cells {
			rowSum += c.Row
			colSum += c.Col
		}
		clusters = append(clusters, Cluster{
			ID:        comp.Label,
			Size:      size,
			CenterRow: roundTiesTowardZero(float64(rowSum) / float64(size)),
			CenterCol: roundTiesTowardZero(float64(colSum) / float64(size)),
		})
	}
	return len(clusters), clusters
}

// roundTiesTowardZero rounds to the nearest integer, with an exact .5
// fraction rounding toward zero. Grid coordinates are non-negative, but the
// negative side is handled symmetrically anyway.
func roundTiesTowardZero(x float64) int {
	whole := int(x)
	frac := x - float64(whole)
	switch {
	case frac > 0.5:
		return whole + 1
	case frac < -0.5:
		return whole - 1
	default:
		return whole
	}
}
