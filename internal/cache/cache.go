// Package cache provides a cache abstraction for container placement state.
// Supports both local (in-memory) and Redis backends for multi-instance
// deployments.
package cache

import (
	"context"
	"time"

	"cargohold/internal/placement"
)

// DefaultTTL is how long a cached container state stays valid. Placement
// state churns with every placement and retrieval, so entries are short
// lived and invalidated explicitly on mutation.
const DefaultTTL = 5 * time.Minute

// Cache defines the interface for container state caching.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves the cached state for a container.
	// Returns nil, nil when the container is not cached.
	Get(ctx context.Context, containerID string) (*placement.ContainerState, error)

	// Set stores the state for a container.
	Set(ctx context.Context, containerID string, state *placement.ContainerState) error

	// Invalidate drops the cached state for a container.
	Invalidate(ctx context.Context, containerID string) error

	// InvalidateAll drops every cached container state.
	InvalidateAll(ctx context.Context) error

	// Close releases any resources held by the cache.
	Close() error
}
