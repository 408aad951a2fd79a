//go:build integration

package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

// setupRedisContainer starts a Redis container for testing
func setupRedisContainer(t *testing.T) (*redis.RedisContainer, string) {
	t.Helper()

	ctx := context.Background()

	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
		redis.WithSnapshotting(10, 1),
		redis.WithLogLevel(redis.LogLevelVerbose),
	)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	// Get the connection string and strip redis:// prefix
	endpoint, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	addr := endpoint
	if len(endpoint) > 8 && endpoint[:8] == "redis://" {
		addr = endpoint[8:]
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return redisContainer, addr
}

func TestRedisLatest_NewRedisLatest_Success(t *testing.T) {
	_, addr := setupRedisContainer(t)

	cache, err := NewRedisLatest(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisLatest_NewRedisLatest_InvalidAddr(t *testing.T) {
	_, err := NewRedisLatest("invalid:99999", "", 0, 1*time.Minute)
	if err == nil {
		t.Fatal("expected error for invalid address, got nil")
	}
}

func TestRedisLatest_NewRedisLatest_EmptyAddr(t *testing.T) {
	_, err := NewRedisLatest("", "", 0, 1*time.Minute)
	if err == nil {
		t.Fatal("expected error for empty address, got nil")
	}
	if err.Error() != "redis address cannot be empty" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestRedisLatest_NewRedisLatest_InvalidDB(t *testing.T) {
	_, err := NewRedisLatest("localhost:6379", "", -1, 1*time.Minute)
	if err == nil {
		t.Fatal("expected error for negative db number, got nil")
	}
	if err.Error() != "redis database number must be >= 0" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestRedisLatest_Put_Success(t *testing.T) {
	_, addr := setupRedisContainer(t)

	cache, err := NewRedisLatest(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	if err := cache.Put(context.Background(), testResult("esp32-01", 2)); err != nil {
		t.Errorf("Put failed: %v", err)
	}

	// Verify key exists in Redis
	ctx := context.Background()
	exists, err := cache.client.Exists(ctx, latestKey).Result()
	if err != nil {
		t.Fatalf("failed to check key existence: %v", err)
	}
	if exists != 1 {
		t.Error("expected key to exist in Redis")
	}
}

func TestRedisLatest_Get_NotFound(t *testing.T) {
	_, addr := setupRedisContainer(t)

	cache, err := NewRedisLatest(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	result, found, err := cache.Get(context.Background())
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if found {
		t.Error("expected result not to be found")
	}
	if result.SensorID != "" {
		t.Error("expected zero-value result")
	}
}

func TestRedisLatest_Serialization_RoundTrip(t *testing.T) {
	_, addr := setupRedisContainer(t)

	cache, err := NewRedisLatest(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	original := testResult("esp32-01", 3)
	original.ReceivedAt = time.Now().Truncate(time.Second)

	if err := cache.Put(context.Background(), original); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	retrieved, found, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected result to be found")
	}

	if retrieved.SensorID != original.SensorID {
		t.Errorf("sensor mismatch: got %s, want %s", retrieved.SensorID, original.SensorID)
	}
	if retrieved.Occupancy != original.Occupancy {
		t.Errorf("occupancy mismatch: got %d, want %d", retrieved.Occupancy, original.Occupancy)
	}
	if !retrieved.ReceivedAt.Equal(original.ReceivedAt) {
		t.Errorf("receivedAt mismatch: got %v, want %v", retrieved.ReceivedAt, original.ReceivedAt)
	}
	if retrieved.RoomTemp == nil || *retrieved.RoomTemp != *original.RoomTemp {
		t.Errorf("roomTemp did not round-trip: %v", retrieved.RoomTemp)
	}
	if len(retrieved.Clusters) != len(original.Clusters) {
		t.Fatalf("clusters length mismatch: got %d, want %d", len(retrieved.Clusters), len(original.Clusters))
	}
	for i := range original.Clusters {
		if retrieved.Clusters[i] != original.Clusters[i] {
			t.Errorf("clusters[%d] mismatch: got %+v, want %+v", i, retrieved.Clusters[i], original.Clusters[i])
		}
	}
	if len(retrieved.Frame.Pixels) != len(original.Frame.Pixels) {
		t.Fatalf("pixels length mismatch: got %d, want %d", len(retrieved.Frame.Pixels), len(original.Frame.Pixels))
	}
	for i := range original.Frame.Pixels {
		if retrieved.Frame.Pixels[i] != original.Frame.Pixels[i] {
			t.Errorf("pixels[%d] mismatch: got %+v, want %+v", i, retrieved.Frame.Pixels[i], original.Frame.Pixels[i])
		}
	}
}

func TestRedisLatest_LastWriterWins(t *testing.T) {
	_, addr := setupRedisContainer(t)

	cache, err := NewRedisLatest(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	if err := cache.Put(context.Background(), testResult("sensor-a", 1)); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := cache.Put(context.Background(), testResult("sensor-b", 4)); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	result, found, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected result to be found")
	}
	if result.SensorID != "sensor-b" || result.Occupancy != 4 {
		t.Errorf("got {SensorID: %s, Occupancy: %d}, want the second writer's result", result.SensorID, result.Occupancy)
	}
}

func TestRedisLatest_TTL_Expiration(t *testing.T) {
	_, addr := setupRedisContainer(t)

	// Create cache with very short TTL
	cache, err := NewRedisLatest(addr, "", 0, 2*time.Second)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	if err := cache.Put(context.Background(), testResult("esp32-01", 1)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Verify it exists immediately
	_, found, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected result to be found immediately after Put")
	}

	// Wait for expiration
	time.Sleep(3 * time.Second)

	_, found, err = cache.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("expected result to be expired")
	}
}

func TestRedisLatest_Concurrency_ReadWrite(t *testing.T) {
	_, addr := setupRedisContainer(t)

	cache, err := NewRedisLatest(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	if err := cache.Put(context.Background(), testResult("seed", 0)); err != nil {
		t.Fatalf("initial Put failed: %v", err)
	}

	// Launch 5 writers and 5 readers concurrently
	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := range 5 {
		wg.Add(1)
		go func(writerID int) {
			defer wg.Done()

			for {
				select {
				case <-done:
					return
				default:
					if err := cache.Put(context.Background(), testResult("writer", writerID)); err != nil {
						t.Errorf("Put failed in writer %d: %v", writerID, err)
					}
					time.Sleep(10 * time.Millisecond)
				}
			}
		}(i)
	}

	for i := range 5 {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()

			for {
				select {
				case <-done:
					return
				default:
					result, found, err := cache.Get(context.Background())
					if err != nil {
						t.Errorf("Get failed in reader %d: %v", readerID, err)
					}
					if found && result.SensorID != "seed" && result.SensorID != "writer" {
						t.Errorf("reader %d observed unexpected result %+v", readerID, result)
					}
					time.Sleep(10 * time.Millisecond)
				}
			}
		}(i)
	}

	// Run for 2 seconds
	time.Sleep(2 * time.Second)
	close(done)
	wg.Wait()
}

func TestRedisLatest_Close_Idempotent(t *testing.T) {
	_, addr := setupRedisContainer(t)

	cache, err := NewRedisLatest(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	if err := cache.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Errorf("third Close failed: %v", err)
	}
}
