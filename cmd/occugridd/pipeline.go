// Package main implements the occugridd ingest pipeline orchestration.
//
// This file contains the Pipeline type which processes one thermal upload:
//
//	decode → baseline → segment → aggregate → expand → append → publish
//
// Each upload is handled synchronously on the request path; there is no
// background loop. The pipeline is instrumented with Prometheus metrics
// tracking the duration of each stage (decode, segment, store append) and any
// errors encountered during processing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/occugrid/occugrid/cmd/occugridd/metrics"
	"github.com/occugrid/occugrid/pkg/occupancy"
	"github.com/occugrid/occugrid/pkg/storage"
	"github.com/occugrid/occugrid/pkg/thermal"
)

// Pipeline turns raw thermal uploads into occupancy samples: decode →
// baseline → segment → aggregate → append to the day log → publish as the
// latest result.
type Pipeline struct {
	segCfg    thermal.SegmentConfig
	filterCfg occupancy.FilterConfig
	store     storage.Store
	latest    storage.LatestCache
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewPipeline creates a Pipeline. The now function defaults to time.Now and
// exists so tests can pin timestamps.
func NewPipeline(
	segCfg thermal.SegmentConfig,
	filterCfg occupancy.FilterConfig,
	store storage.Store,
	latest storage.LatestCache,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		segCfg:    segCfg,
		filterCfg: filterCfg,
		store:     store,
		latest:    latest,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// ProcessFrame runs one upload through the full pipeline. A malformed
// payload is rejected before any state changes; once the sample has been
// appended to the day log the latest-result slot is updated to match.
func (p *Pipeline) ProcessFrame(ctx context.Context, raw []byte) (storage.Result, error) {
	start := p.now()

	frame, decodeDuration, err := p.decode(raw)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordError("decode", "malformed")
		}
		return storage.Result{}, fmt.Errorf("decode: %w", err)
	}

	baseline, occ, clusters, segmentDuration, err := p.segment(frame)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordError("segment", "baseline_failed")
		}
		return storage.Result{}, fmt.Errorf("segment: %w", err)
	}

	receivedAt := p.now()
	sample := occupancy.Sample{
		Timestamp: receivedAt,
		Occupancy: occ,
		RoomTemp:  &baseline,
		Clusters:  clusters,
	}

	appendDuration, err := p.append(ctx, sample)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordError("store", "append_failed")
		}
		return storage.Result{}, fmt.Errorf("append sample: %w", err)
	}

	result := storage.Result{
		SensorID:   frame.SensorID,
		ReceivedAt: receivedAt,
		Occupancy:  occ,
		RoomTemp:   &baseline,
		Clusters:   clusters,
		Frame:      thermal.ExpandFrame(frame),
	}

	if err := p.latest.Put(ctx, result); err != nil {
		if p.metrics != nil {
			p.metrics.RecordError("latest", "put_failed")
		}
		return storage.Result{}, fmt.Errorf("publish latest result: %w", err)
	}

	if p.metrics != nil {
		p.metrics.RecordFrame()
		p.metrics.SetOccupancy(occ)
		p.metrics.SetRoomTemp(baseline)
	}

	totalDuration := time.Since(start)
	p.logger.Info("frame processed",
		"sensor", frame.SensorID,
		"grid", fmt.Sprintf("%dx%d", frame.Width, frame.Height),
		"occupancy", occ,
		"room_temp", baseline,
		"clusters", len(clusters),
		"decode_ms", decodeDuration.Milliseconds(),
		"segment_ms", segmentDuration.Milliseconds(),
		"append_ms", appendDuration.Milliseconds(),
		"total_ms", totalDuration.Milliseconds(),
	)

	return result, nil
}

// decode parses and validates the raw upload.
func (p *Pipeline) decode(raw []byte) (*thermal.Frame, time.Duration, error) {
	start := time.Now()

	frame, err := thermal.DecodePayload(raw)
	if err != nil {
		return nil, 0, err
	}

	duration := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordDecode(duration.Seconds())
	}

	p.logger.Debug("decoded frame",
		"sensor", frame.SensorID,
		"width", frame.Width,
		"height", frame.Height,
		"duration_ms", duration.Milliseconds(),
	)

	return frame, duration, nil
}

// segment estimates the room baseline and reduces the frame to counted
// warm clusters.
func (p *Pipeline) segment(frame *thermal.Frame) (float64, int, []occupancy.Cluster, time.Duration, error) {
	start := time.Now()

	baseline, err := thermal.RoomBaseline(frame.Cells)
	if err != nil {
		return 0, 0, nil, 0, err
	}

	mask := thermal.WarmMask(frame, baseline, p.segCfg)
	components := thermal.LabelComponents(mask, frame.Width, frame.Height)
	occ, clusters := occupancy.Aggregate(components, p.filterCfg)

	duration := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordSegment(duration.Seconds())
	}

	p.logger.Debug("segmented frame",
		"baseline", baseline,
		"raw_components", len(components),
		"counted_clusters", len(clusters),
		"duration_ms", duration.Milliseconds(),
	)

	return baseline, occ, clusters, duration, nil
}

// append persists the sample to the day log.
func (p *Pipeline) append(ctx context.Context, sample occupancy.Sample) (time.Duration, error) {
	start := time.Now()

	if err := p.store.Append(ctx, sample); err != nil {
		return 0, err
	}

	duration := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordStoreAppend(duration.Seconds())
	}

	return duration, nil
}

// Latest returns the most recently processed result.
// Returns storage.ErrNoData when nothing has been processed yet.
func (p *Pipeline) Latest(ctx context.Context) (storage.Result, error) {
	result, found, err := p.latest.Get(ctx)
	if err != nil {
		return storage.Result{}, fmt.Errorf("get latest result: %w", err)
	}
	if !found {
		return storage.Result{}, fmt.Errorf("%w: no frame processed yet", storage.ErrNoData)
	}
	return result, nil
}

// History returns the day's samples in append order.
func (p *Pipeline) History(ctx context.Context, day storage.DayKey) ([]occupancy.Sample, error) {
	return p.store.Range(ctx, day)
}

// Stats returns the day's summary statistics.
func (p *Pipeline) Stats(ctx context.Context, day storage.DayKey) (storage.DayStats, error) {
	return p.store.Stats(ctx, day)
}
