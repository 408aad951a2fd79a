// Package metrics provides Prometheus metrics instrumentation for occugridd.
//
// It exposes operational metrics about the ingest pipeline, including the
// duration of each stage (decode, segment, store), the most recent occupancy
// count and room temperature, and error tracking. All metrics are exposed via
// the /metrics HTTP endpoint for Prometheus scraping.
//
// Metrics exposed:
//   - occugrid_decode_seconds: Histogram of frame decode duration
//   - occugrid_segment_seconds: Histogram of baseline + segmentation duration
//   - occugrid_store_append_seconds: Histogram of day-log append duration
//   - occugrid_frames_total: Counter of successfully processed frames
//   - occugrid_occupancy: Gauge of the most recent occupancy count
//   - occugrid_room_temp_celsius: Gauge of the most recent room baseline
//   - occugrid_errors_total: Counter of errors by component and reason
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for occugridd.
type Metrics struct {
	DecodeSeconds      prometheus.Histogram
	SegmentSeconds     prometheus.Histogram
	StoreAppendSeconds prometheus.Histogram
	FramesTotal        prometheus.Counter
	Occupancy          prometheus.Gauge
	RoomTempCelsius    prometheus.Gauge
	ErrorsTotal        *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		DecodeSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "occugrid_decode_seconds",
			Help:    "Time spent decoding an uploaded frame",
			Buckets: prometheus.DefBuckets, // Default buckets: .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
		}),

		SegmentSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "occugrid_segment_seconds",
			Help:    "Time spent on baseline estimation and warm-cluster segmentation",
			Buckets: prometheus.DefBuckets,
		}),

		StoreAppendSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "occugrid_store_append_seconds",
			Help:    "Time spent appending a sample to the day log",
			Buckets: prometheus.DefBuckets,
		}),

		FramesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "occugrid_frames_total",
			Help: "Total number of successfully processed frames",
		}),

		Occupancy: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "occugrid_occupancy",
			Help: "Occupancy count from the most recent frame",
		}),

		RoomTempCelsius: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "occugrid_room_temp_celsius",
			Help: "Room baseline temperature from the most recent frame",
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "occugrid_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordDecode records the time spent decoding a frame.
func (m *Metrics) RecordDecode(seconds float64) {
	m.DecodeSeconds.Observe(seconds)
}

// RecordSegment records the time spent on baseline and segmentation.
func (m *Metrics) RecordSegment(seconds float64) {
	m.SegmentSeconds.Observe(seconds)
}

// RecordStoreAppend records the time spent appending to the day log.
func (m *Metrics) RecordStoreAppend(seconds float64) {
	m.StoreAppendSeconds.Observe(seconds)
}

// RecordFrame increments the processed-frame counter.
func (m *Metrics) RecordFrame() {
	m.FramesTotal.Inc()
}

// SetOccupancy sets the most recent occupancy count.
func (m *Metrics) SetOccupancy(count int) {
	m.Occupancy.Set(float64(count))
}

// SetRoomTemp sets the most recent room baseline temperature.
func (m *Metrics) SetRoomTemp(celsius float64) {
	m.RoomTempCelsius.Set(celsius)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
