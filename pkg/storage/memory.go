package storage

import (
	"context"
	"sync"
)

// MemoryLatest implements LatestCache with a single in-process slot.
// It is safe for concurrent use by multiple goroutines.
//
// The value lives only as long as the process; restarts come back empty
// until the next upload. For multi-instance deployments where every
// instance should see the same latest result, use RedisLatest instead.
type MemoryLatest struct {
	mu     sync.RWMutex
	result Result
	set    bool
}

// NewMemoryLatest creates an empty in-memory latest-result slot.
// The cache is ready to use immediately with no additional configuration.
func NewMemoryLatest() *MemoryLatest {
	return &MemoryLatest{}
}

// Put replaces the slot with the given result. The previous value, if any,
// is discarded regardless of which sensor produced it.
//
// Returns the context error if the context is already canceled.
// This operation is safe for concurrent use.
func (c *MemoryLatest) Put(ctx context.Context, result Result) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.result = result
	c.set = true
	return nil
}

// Get retrieves the most recently stored result.
//
// Returns:
//   - result: The stored result (zero value if the slot is empty)
//   - found: true once Put has been called at least once
//   - error: Context error if context is canceled, nil otherwise
//
// This operation is safe for concurrent use.
func (c *MemoryLatest) Get(ctx context.Context) (Result, bool, error) {
	select {
	case <-ctx.Done():
		return Result{}, false, ctx.Err()
	default:
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.result, c.set, nil
}

// Ping always succeeds unless the context is canceled; the in-memory slot
// has no backend to lose.
func (c *MemoryLatest) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Clear empties the slot. This method is primarily useful for testing.
//
// This operation is safe for concurrent use.
func (c *MemoryLatest) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.result = Result{}
	c.set = false
}
