package services

import (
	"context"
	"sync/atomic"
)

// ConcurrencyLimiter bounds how many detections run at once. The detector is
// CPU bound, so uploads beyond the limit wait for a slot.
type ConcurrencyLimiter struct {
	slots       chan struct{}
	activeCount atomic.Int64
	waiting     atomic.Int64
}

// NewConcurrencyLimiter creates a limiter with max slots (minimum 1).
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	if max <= 0 {
		max = 1
	}
	return &ConcurrencyLimiter{slots: make(chan struct{}, max)}
}

// Acquire blocks until a slot is available, or returns an error if the
// context is cancelled.
func (c *ConcurrencyLimiter) Acquire(ctx context.Context) error {
	c.waiting.Add(1)
	defer c.waiting.Add(-1)

	select {
	case c.slots <- struct{}{}:
		c.activeCount.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot.
func (c *ConcurrencyLimiter) Release() {
	select {
	case <-c.slots:
		c.activeCount.Add(-1)
	default:
	}
}

// ConcurrencyStats reports current usage.
type ConcurrencyStats struct {
	Active  int `json:"active"`
	Waiting int `json:"waiting"`
	Max     int `json:"max"`
}

// Stats returns the current concurrency statistics.
func (c *ConcurrencyLimiter) Stats() ConcurrencyStats {
	return ConcurrencyStats{
		Active:  int(c.activeCount.Load()),
		Waiting: int(c.waiting.Load()),
		Max:     cap(c.slots),
	}
}
