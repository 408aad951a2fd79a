//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/occugrid/occugrid/cmd/occugridd/router"
	"github.com/occugrid/occugrid/pkg/httpx"
	"github.com/occugrid/occugrid/pkg/occupancy"
	"github.com/occugrid/occugrid/pkg/storage"
	"github.com/occugrid/occugrid/pkg/thermal"
	occugridtls "github.com/occugrid/occugrid/pkg/tls"
)

// service wires the public pipeline stages together the way occugridd does,
// so the whole HTTP surface can be exercised in-process.
type service struct {
	segCfg    thermal.SegmentConfig
	filterCfg occupancy.FilterConfig
	store     storage.Store
	latest    storage.LatestCache
}

func (s *service) ProcessFrame(ctx context.Context, raw []byte) (storage.Result, error) {
	frame, err := thermal.DecodePayload(raw)
	if err != nil {
		return storage.Result{}, err
	}

	baseline, err := thermal.RoomBaseline(frame.Cells)
	if err != nil {
		return storage.Result{}, err
	}

	mask := thermal.WarmMask(frame, baseline, s.segCfg)
	components := thermal.LabelComponents(mask, frame.Width, frame.Height)
	occ, clusters := occupancy.Aggregate(components, s.filterCfg)

	receivedAt := time.Now()
	sample := occupancy.Sample{
		Timestamp: receivedAt,
		Occupancy: occ,
		RoomTemp:  &baseline,
		Clusters:  clusters,
	}
	if err := s.store.Append(ctx, sample); err != nil {
		return storage.Result{}, err
	}

	result := storage.Result{
		SensorID:   frame.SensorID,
		ReceivedAt: receivedAt,
		Occupancy:  occ,
		RoomTemp:   &baseline,
		Clusters:   clusters,
		Frame:      thermal.ExpandFrame(frame),
	}
	if err := s.latest.Put(ctx, result); err != nil {
		return storage.Result{}, err
	}
	return result, nil
}

func (s *service) Latest(ctx context.Context) (storage.Result, error) {
	result, found, err := s.latest.Get(ctx)
	if err != nil {
		return storage.Result{}, err
	}
	if !found {
		return storage.Result{}, fmt.Errorf("%w: no frame processed yet", storage.ErrNoData)
	}
	return result, nil
}

func (s *service) History(ctx context.Context, day storage.DayKey) ([]occupancy.Sample, error) {
	return s.store.Range(ctx, day)
}

func (s *service) Stats(ctx context.Context, day storage.DayKey) (storage.DayStats, error) {
	return s.store.Stats(ctx, day)
}

// gridPayload builds a compact upload: ambient grid with warm 2x2 blocks.
func gridPayload(t *testing.T, blocks [][2]int) []byte {
	t.Helper()

	const width, height = 16, 12
	cells := make([]float64, width*height)
	for i := range cells {
		cells[i] = 22.0
	}
	for _, b := range blocks {
		for dr := 0; dr < 2; dr++ {
			for dc := 0; dc < 2; dc++ {
				cells[(b[0]+dr)*width+(b[1]+dc)] = 36.5
			}
		}
	}

	raw, err := json.Marshal(map[string]any{
		"sensor_id": "it-sensor",
		"w":         width,
		"h":         height,
		"min":       22.0,
		"max":       36.5,
		"t":         cells,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

// TestOccugridE2E runs the full ingest-to-query path over HTTP with the
// file-backed day log and a Redis-backed latest cache.
func TestOccugridE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get redis endpoint: %v", err)
	}
	addr := endpoint
	if len(endpoint) > 8 && endpoint[:8] == "redis://" {
		addr = endpoint[8:]
	}

	dataDir := t.TempDir()
	store, err := storage.NewDayLogStore(dataDir)
	if err != nil {
		t.Fatalf("Failed to open day log store: %v", err)
	}

	latest, err := storage.NewRedisLatest(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	defer latest.Close()

	svc := &service{
		segCfg:    thermal.DefaultSegmentConfig(),
		filterCfg: occupancy.DefaultFilterConfig(),
		store:     store,
		latest:    latest,
	}

	check := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return latest.Ping(ctx)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := httptest.NewServer(router.SetupRoutes(svc, 1<<20, check, logger))
	defer server.Close()

	client, err := httpx.NewClient(occugridtls.Config{}, 10*time.Second)
	if err != nil {
		t.Fatalf("Failed to create HTTP client: %v", err)
	}

	// 1. Redis is up, so the health check reports healthy
	resp, err := client.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz status = %d, want 200", resp.StatusCode)
	}

	// 2. Nothing processed yet: latest endpoints return 404
	resp, err = client.Get(server.URL + "/api/thermal")
	if err != nil {
		t.Fatalf("GET /api/thermal failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /api/thermal before ingest status = %d, want 404", resp.StatusCode)
	}

	// 3. Ingest: empty room, one person, two people
	uploads := []struct {
		blocks        [][2]int
		wantOccupancy int
	}{
		{nil, 0},
		{[][2]int{{3, 3}}, 1},
		{[][2]int{{2, 2}, {8, 10}}, 2},
	}

	for i, up := range uploads {
		resp, err := client.Post(server.URL+"/api/thermal", "application/json", bytes.NewReader(gridPayload(t, up.blocks)))
		if err != nil {
			t.Fatalf("POST /api/thermal upload %d failed: %v", i, err)
		}

		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode upload %d response: %v", i, err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST upload %d status = %d (body: %v)", i, resp.StatusCode, body)
		}
		if body["occupancy"] != float64(up.wantOccupancy) {
			t.Errorf("upload %d occupancy = %v, want %d", i, body["occupancy"], up.wantOccupancy)
		}
	}

	// 4. Malformed upload is rejected with 400 and leaves no trace
	resp, err = client.Post(server.URL+"/api/thermal", "application/json", bytes.NewReader([]byte(`{"w":4,"h":4,"t":[1,2]}`)))
	if err != nil {
		t.Fatalf("POST malformed upload failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed upload status = %d, want 400", resp.StatusCode)
	}

	// 5. Latest frame reflects the final upload, served through Redis
	resp, err = client.Get(server.URL + "/api/thermal")
	if err != nil {
		t.Fatalf("GET /api/thermal failed: %v", err)
	}
	var frame map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		t.Fatalf("decode latest frame: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/thermal status = %d, want 200", resp.StatusCode)
	}
	if frame["occupancy"] != float64(2) {
		t.Errorf("latest occupancy = %v, want 2", frame["occupancy"])
	}
	pixels, ok := frame["pixels"].([]any)
	if !ok || len(pixels) != 16*12 {
		t.Errorf("latest frame pixels = %d entries, want %d", len(pixels), 16*12)
	}

	// 6. Day statistics cover all three accepted uploads
	resp, err = client.Get(server.URL + "/api/occupancy/stats")
	if err != nil {
		t.Fatalf("GET /api/occupancy/stats failed: %v", err)
	}
	var stats storage.DayStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	resp.Body.Close()

	if stats.Count != 3 {
		t.Errorf("stats.Count = %d, want 3", stats.Count)
	}
	if stats.MinOccupancy != 0 || stats.MaxOccupancy != 2 {
		t.Errorf("stats min/max = %d/%d, want 0/2", stats.MinOccupancy, stats.MaxOccupancy)
	}
	if stats.AvgOccupancy != 1.0 {
		t.Errorf("stats.AvgOccupancy = %v, want 1.0", stats.AvgOccupancy)
	}
	if stats.Current != 2 {
		t.Errorf("stats.Current = %d, want 2", stats.Current)
	}

	// 7. History survives a process restart: rebuild the stack on the same
	// data directory and query again.
	server.Close()

	store2, err := storage.NewDayLogStore(dataDir)
	if err != nil {
		t.Fatalf("Failed to reopen day log store: %v", err)
	}
	svc2 := &service{
		segCfg:    thermal.DefaultSegmentConfig(),
		filterCfg: occupancy.DefaultFilterConfig(),
		store:     store2,
		latest:    latest,
	}
	server2 := httptest.NewServer(router.SetupRoutes(svc2, 1<<20, check, logger))
	defer server2.Close()

	resp, err = client.Get(server2.URL + "/api/occupancy/history")
	if err != nil {
		t.Fatalf("GET /api/occupancy/history failed: %v", err)
	}
	var history map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	resp.Body.Close()

	if history["count"] != float64(3) {
		t.Errorf("history count after restart = %v, want 3", history["count"])
	}

	// The Redis-backed latest result also survives the restart.
	resp, err = client.Get(server2.URL + "/api/occupancy/latest")
	if err != nil {
		t.Fatalf("GET /api/occupancy/latest failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("latest after restart status = %d, want 200", resp.StatusCode)
	}

	t.Log("✓ All integration checks passed")
}
