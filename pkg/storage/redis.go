package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// latestKey is the fixed Redis key holding the latest processed result.
// A single key is enough: the slot is process-wide and last-writer-wins.
const latestKey = "occugrid:latest"

// RedisLatest implements LatestCache using Redis as a backend.
// It lets multiple service instances share the same latest-result slot
// and survives restarts of any single instance, with TTL-based expiry
// so a dead sensor eventually stops looking live.
type RedisLatest struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewRedisLatest creates a new Redis-backed latest-result cache.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - ttl: Result expiration duration (0 uses default of 30 minutes)
//
// Returns an error if the connection to Redis fails or if parameters are invalid.
func NewRedisLatest(addr, password string, db int, ttl time.Duration) (*RedisLatest, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}

	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisLatest{
		client: client,
		ttl:    ttl,
	}, nil
}

// Put stores the result in Redis under a fixed key with TTL-based expiration,
// replacing whatever was there before.
func (r *RedisLatest) Put(ctx context.Context, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := r.client.Set(ctx, latestKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store result in redis: %w", err)
	}

	return nil
}

// Get retrieves the latest processed result.
//
// Returns:
//   - result: The stored result (zero value if not found)
//   - found: true if a result exists and has not expired
//   - error: non-nil if an error occurred (excluding "not found")
func (r *RedisLatest) Get(ctx context.Context) (Result, bool, error) {
	data, err := r.client.Get(ctx, latestKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("failed to get result from redis: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, false, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return result, true, nil
}

// Close closes the Redis client connection.
// It is safe to call multiple times (idempotent).
func (r *RedisLatest) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if err != nil && err.Error() == "redis: client is closed" {
		return nil
	}

	return err
}

// Ping checks the Redis connection health.
// Returns an error if the connection is unavailable.
func (r *RedisLatest) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
