package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/occugrid/occugrid/pkg/occupancy"
)

// DayLogStore implements Store on top of one append-only log file per
// calendar day: <dir>/occupancy-YYYYMMDD.log, one self-contained JSON record
// per line.
//
// Appends are serialized by a single mutex and each record is written with a
// single write call, so concurrent appends never interleave. Readers do not
// take the append lock: they read the file as-is and drop a trailing line
// that has no newline yet, so a reader never surfaces a partially written
// record and a reader of one day never waits behind an append for another.
// Records are independently parseable line by line, which keeps a log
// recoverable even if the process dies between two appends.
type DayLogStore struct {
	dir string
	mu  sync.Mutex
}

// NewDayLogStore creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewDayLogStore(dir string) (*DayLogStore, error) {
	if dir == "" {
		return nil, errors.New("data directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &DayLogStore{dir: dir}, nil
}

func (s *DayLogStore) path(day DayKey) string {
	return filepath.Join(s.dir, fmt.Sprintf("occupancy-%s.log", day))
}

// Append adds a sample to the log of the day derived from its timestamp.
// The day's log is created on first append; past days are simply never
// written to again, but nothing here assumes a log is ever closed, so a
// late sample for the current day appends like any other.
func (s *DayLogStore) Append(ctx context.Context, sample occupancy.Sample) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	record, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}
	record = append(record, '\n')

	day := DayKeyFor(sample.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open day log %s: %w", day, err)
	}

	// One write call for the whole line keeps the record all-or-nothing
	// from a reader's point of view.
	if _, err := f.Write(record); err != nil {
		f.Close()
		return fmt.Errorf("append to day log %s: %w", day, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close day log %s: %w", day, err)
	}
	return nil
}

// Range returns all samples recorded for the day, in append order.
func (s *DayLogStore) Range(ctx context.Context, day DayKey) ([]occupancy.Sample, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(s.path(day))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no log for day %s", ErrNotFound, day)
		}
		return nil, fmt.Errorf("read day log %s: %w", day, err)
	}

	// A trailing line without a newline is an append still in flight (or
	// cut short by a crash); complete records all end in '\n'.
	if i := bytes.LastIndexByte(data, '\n'); i < 0 {
		data = nil
	} else {
		data = data[:i+1]
	}

	var samples []occupancy.Sample
	for lineNo, line := range bytes.Split(data, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		var sample occupancy.Sample
		if err := json.Unmarshal(line, &sample); err != nil {
			return nil, fmt.Errorf("day log %s: corrupt record at line %d: %w", day, lineNo+1, err)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// Stats returns summary statistics for the day, derived from Range.
func (s *DayLogStore) Stats(ctx context.Context, day DayKey) (DayStats, error) {
	samples, err := s.Range(ctx, day)
	if err != nil {
		return DayStats{}, err
	}
	return computeDayStats(day, samples)
}

// Days lists the days that have a log, in ascending order. Useful for
// retention tooling and tests.
func (s *DayLogStore) Days() ([]DayKey, error) {
	entries, err := filepath.Glob(filepath.Join(s.dir, "occupancy-*.log"))
	if err != nil {
		return nil, err
	}
	days := make([]DayKey, 0, len(entries))
	for _, e := range entries {
		name := filepath.Base(e)
		raw := name[len("occupancy-") : len(name)-len(".log")]
		day, err := ParseDayKey(raw)
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	return days, nil
}
