package routing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lorekeeper/internal/domain"
)

func TestContextCacheSingleLoadWithinTTL(t *testing.T) {
	var loads atomic.Int32
	cache := NewContextCache(func(_ context.Context, agentID string) (*domain.RoutingContext, error) {
		loads.Add(1)
		return &domain.RoutingContext{AgentID: agentID}, nil
	}, time.Minute, time.Second, nil)

	first := cache.Get(context.Background(), "a1")
	second := cache.Get(context.Background(), "a1")

	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), loads.Load(), "two gets within the TTL hit the store once")
}

func TestContextCacheExpiry(t *testing.T) {
	var loads atomic.Int32
	cache := NewContextCache(func(_ context.Context, agentID string) (*domain.RoutingContext, error) {
		loads.Add(1)
		return &domain.RoutingContext{AgentID: agentID}, nil
	}, time.Minute, time.Second, nil)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Get(context.Background(), "a1")
	now = now.Add(2 * time.Minute)
	cache.Get(context.Background(), "a1")

	assert.Equal(t, int32(2), loads.Load())
}

func TestContextCacheInvalidateForcesReload(t *testing.T) {
	var loads atomic.Int32
	cache := NewContextCache(func(_ context.Context, agentID string) (*domain.RoutingContext, error) {
		loads.Add(1)
		return &domain.RoutingContext{AgentID: agentID}, nil
	}, time.Minute, time.Second, nil)

	cache.Get(context.Background(), "a1")
	cache.Invalidate("a1")
	cache.Get(context.Background(), "a1")

	assert.Equal(t, int32(2), loads.Load())
}

func TestContextCacheInvalidateAll(t *testing.T) {
	var loads atomic.Int32
	cache := NewContextCache(func(_ context.Context, agentID string) (*domain.RoutingContext, error) {
		loads.Add(1)
		return &domain.RoutingContext{AgentID: agentID}, nil
	}, time.Minute, time.Second, nil)

	cache.Get(context.Background(), "a1")
	cache.Get(context.Background(), "a2")
	cache.Invalidate()
	cache.Get(context.Background(), "a1")
	cache.Get(context.Background(), "a2")

	assert.Equal(t, int32(4), loads.Load())
}

func TestContextCacheNeverCachesNil(t *testing.T) {
	var loads atomic.Int32
	cache := NewContextCache(func(_ context.Context, _ string) (*domain.RoutingContext, error) {
		loads.Add(1)
		return nil, nil // not provisioned yet
	}, time.Minute, time.Second, nil)

	assert.Nil(t, cache.Get(context.Background(), "a1"))
	assert.Nil(t, cache.Get(context.Background(), "a1"))
	assert.Equal(t, int32(2), loads.Load(), "unprovisioned agents re-query every call")
}

func TestContextCacheLoadErrorDegradesToNil(t *testing.T) {
	cache := NewContextCache(func(_ context.Context, _ string) (*domain.RoutingContext, error) {
		return nil, errors.New("store down")
	}, time.Minute, time.Second, nil)

	assert.Nil(t, cache.Get(context.Background(), "a1"))
}

func TestContextCacheSlowLoadTimesOut(t *testing.T) {
	cache := NewContextCache(func(ctx context.Context, agentID string) (*domain.RoutingContext, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &domain.RoutingContext{AgentID: agentID}, nil
		}
	}, time.Minute, 20*time.Millisecond, nil)

	start := time.Now()
	rc := cache.Get(context.Background(), "a1")

	assert.Nil(t, rc, "a slow store degrades to no override")
	assert.Less(t, time.Since(start), time.Second)
}
