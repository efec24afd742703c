package cache

import (
	"context"
	"sync"
	"time"

	"cargohold/internal/placement"
)

type localEntry struct {
	state     *placement.ContainerState
	expiresAt time.Time
}

// LocalCache implements Cache using an in-memory map with per-entry TTL.
// This is suitable for single-instance deployments.
type LocalCache struct {
	mu      sync.RWMutex
	entries map[string]localEntry
	ttl     time.Duration
}

// NewLocalCache creates a new in-memory cache. A zero ttl uses DefaultTTL.
func NewLocalCache(ttl time.Duration) *LocalCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LocalCache{
		entries: make(map[string]localEntry),
		ttl:     ttl,
	}
}

// Get retrieves the cached state for a container. Expired entries are
// dropped lazily on read.
func (c *LocalCache) Get(_ context.Context, containerID string) (*placement.ContainerState, error) {
	c.mu.RLock()
	entry, ok := c.entries[containerID]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have refreshed it
		if cur, ok := c.entries[containerID]; ok && time.Now().After(cur.expiresAt) {
			delete(c.entries, containerID)
		}
		c.mu.Unlock()
		return nil, nil
	}
	return entry.state, nil
}

// Set stores the state for a container.
func (c *LocalCache) Set(_ context.Context, containerID string, state *placement.ContainerState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[containerID] = localEntry{
		state:     state,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

// Invalidate drops the cached state for a container.
func (c *LocalCache) Invalidate(_ context.Context, containerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, containerID)
	return nil
}

// InvalidateAll drops every cached container state.
func (c *LocalCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]localEntry)
	return nil
}

// Close is a no-op for the local cache.
func (c *LocalCache) Close() error {
	return nil
}
