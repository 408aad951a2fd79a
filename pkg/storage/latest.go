package storage

import (
	"context"
	"time"

	"github.com/occugrid/occugrid/pkg/occupancy"
	"github.com/occugrid/occugrid/pkg/thermal"
)

// Result is the outcome of one successfully processed upload: what the live
// page and the latest-result endpoints serve.
type Result struct {
	SensorID   string                `json:"sensor_id,omitempty"`
	ReceivedAt time.Time             `json:"received_at"`
	Occupancy  int                   `json:"occupancy"`
	RoomTemp   *float64              `json:"room_temp,omitempty"`
	Clusters   []occupancy.Cluster   `json:"clusters"`
	Frame      thermal.ExpandedFrame `json:"frame"`
}

// LatestCache is the single-slot "latest processed result" view.
//
// The slot is process-wide and deliberately not keyed by sensor: the last
// writer wins, whichever sensor it came from, matching the upload contract
// this service inherited. Put replaces the slot; Get reports found=false
// until the first Put.
//
// Implementations must be safe for concurrent use.
type LatestCache interface {
	Put(ctx context.Context, result Result) error
	Get(ctx context.Context) (Result, bool, error)

	// Ping reports whether the backend is reachable, for health checks.
	Ping(ctx context.Context) error
}
