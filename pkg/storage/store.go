// Package storage provides persistence for occupancy samples and the
// latest-result cache.
//
// Two concerns live here. The Store interface is the day-bucketed time
// series: samples append to one log per calendar day and are queried back by
// day, in append order, or reduced to summary statistics. The LatestCache
// interface is the single-slot "last successfully processed upload" view
// served to the live page, with an in-memory backend for single-instance
// deployments and a Redis backend for shared ones.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/occugrid/occugrid/pkg/occupancy"
)

// ErrNotFound indicates a query for a day that has no log at all.
var ErrNotFound = errors.New("not found")

// ErrNoData indicates a computation with nothing to operate on: statistics
// over a day whose log exists but holds no records, or a latest-result read
// before anything has been processed.
var ErrNoData = errors.New("no data")

// dayKeyLayout is the reference layout for day keys, local time.
const dayKeyLayout = "20060102"

// DayKey identifies one calendar day of the time series, formatted YYYYMMDD
// in local time.
type DayKey string

// DayKeyFor returns the day key for the calendar day containing t, in local
// time. Samples are bucketed by this key at append time.
func DayKeyFor(t time.Time) DayKey {
	return DayKey(t.Local().Format(dayKeyLayout))
}

// ParseDayKey validates a client-supplied day string.
func ParseDayKey(s string) (DayKey, error) {
	if len(s) != len(dayKeyLayout) {
		return "", fmt.Errorf("invalid day %q (want YYYYMMDD)", s)
	}
	if _, err := time.ParseInLocation(dayKeyLayout, s, time.Local); err != nil {
		return "", fmt.Errorf("invalid day %q (want YYYYMMDD): %w", s, err)
	}
	return DayKey(s), nil
}

func (k DayKey) String() string { return string(k) }

// DayStats summarizes one day's occupancy samples.
type DayStats struct {
	Day          DayKey      `json:"day"`
	Count        int         `json:"count"`
	MinOccupancy int         `json:"minOccupancy"`
	MaxOccupancy int         `json:"maxOccupancy"`
	AvgOccupancy float64     `json:"avgOccupancy"`
	Current      int         `json:"current"`
	Distribution map[int]int `json:"distribution"`
}

// Store is the day-bucketed occupancy time series.
//
// Append must be safe for concurrent callers: records become fully visible
// or not at all, never interleaved. Range and Stats may run concurrently
// with each other and with appends; a reader never observes a partially
// written record, and a query for one day is never blocked by an append for
// an unrelated day.
type Store interface {
	// Append durably adds a sample to the log of the calendar day derived
	// from the sample's timestamp. A sample is appended exactly once and is
	// immutable thereafter.
	Append(ctx context.Context, sample occupancy.Sample) error

	// Range returns all samples recorded for the day, in append order.
	// Returns ErrNotFound when no log exists for that day.
	Range(ctx context.Context, day DayKey) ([]occupancy.Sample, error)

	// Stats returns summary statistics derived from Range. Returns
	// ErrNotFound like Range, and ErrNoData when the day's log exists but
	// holds no records.
	Stats(ctx context.Context, day DayKey) (DayStats, error)
}

// computeDayStats reduces a day's samples to summary statistics. The average
// is rounded to two decimal places; Current is the most recent sample's
// occupancy; Distribution maps each distinct occupancy value to how often it
// was observed.
func computeDayStats(day DayKey, samples []occupancy.Sample) (DayStats, error) {
	if len(samples) == 0 {
		return DayStats{}, fmt.Errorf("%w: day %s has no samples", ErrNoData, day)
	}

	stats := DayStats{
		Day:          day,
		Count:        len(samples),
		MinOccupancy: samples[0].Occupancy,
		MaxOccupancy: samples[0].Occupancy,
		Current:      samples[len(samples)-1].Occupancy,
		Distribution: make(map[int]int),
	}

	sum := 0
	for _, s := range samples {
		occ := s.Occupancy
		if occ < stats.MinOccupancy {
			stats.MinOccupancy = occ
		}
		if occ > stats.MaxOccupancy {
			stats.MaxOccupancy = occ
		}
		sum += occ
		stats.Distribution[occ]++
	}
	stats.AvgOccupancy = math.Round(float64(sum)/float64(len(samples))*100) / 100

	return stats, nil
}
