package cache

import (
	"context"
	"time"
)

// Layered composes a fast local layer over a slower shared one.
// Hits in the slow layer are promoted into the fast layer using the fast
// layer's default TTL.
type Layered struct {
	fast Cache
	slow Cache
}

// NewLayered creates a layered cache.
func NewLayered(fast, slow Cache) *Layered {
	return &Layered{fast: fast, slow: slow}
}

// Get checks the fast layer first, then the slow one.
func (c *Layered) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, found := c.fast.Get(ctx, key); found {
		return val, true
	}

	if val, found := c.slow.Get(ctx, key); found {
		// Promote to the fast layer
		c.fast.Set(ctx, key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers.
func (c *Layered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.fast.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.slow.Set(ctx, key, value, ttl)
}

// Delete removes a value from both layers.
func (c *Layered) Delete(ctx context.Context, key string) error {
	c.fast.Delete(ctx, key)
	return c.slow.Delete(ctx, key)
}

// Clear removes all values from both layers.
func (c *Layered) Clear(ctx context.Context) error {
	c.fast.Clear(ctx)
	return c.slow.Clear(ctx)
}
