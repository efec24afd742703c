package cache

import (
	"context"
	"log/slog"

	"cargohold/internal/placement"
)

// CachingSource wraps a placement.StateSource with a Cache. Cache failures
// degrade to the underlying source rather than failing the request.
type CachingSource struct {
	inner placement.StateSource
	cache Cache
}

// NewCachingSource creates a state source that consults the cache first.
func NewCachingSource(inner placement.StateSource, cache Cache) *CachingSource {
	return &CachingSource{inner: inner, cache: cache}
}

var _ placement.StateSource = (*CachingSource)(nil)

// ContainerState returns the cached state when present, otherwise loads it
// from the underlying source and caches the result.
func (s *CachingSource) ContainerState(ctx context.Context, containerID string) (*placement.ContainerState, error) {
	state, err := s.cache.Get(ctx, containerID)
	if err != nil {
		slog.Warn("container state cache read failed", "container_id", containerID, "error", err)
	} else if state != nil {
		return state, nil
	}

	state, err = s.inner.ContainerState(ctx, containerID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, containerID, state); err != nil {
		slog.Warn("container state cache write failed", "container_id", containerID, "error", err)
	}
	return state, nil
}

// Invalidate drops the cached state for a container after a mutation.
func (s *CachingSource) Invalidate(ctx context.Context, containerID string) {
	if containerID == "" {
		return
	}
	if err := s.cache.Invalidate(ctx, containerID); err != nil {
		slog.Warn("container state cache invalidation failed", "container_id", containerID, "error", err)
	}
}

// InvalidateAll drops every cached container state, used after bulk imports
// and undocking.
func (s *CachingSource) InvalidateAll(ctx context.Context) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		slog.Warn("container state cache flush failed", "error", err)
	}
}
