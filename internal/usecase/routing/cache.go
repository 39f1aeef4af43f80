package routing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lorekeeper/internal/domain"
)

// Cache defaults.
const (
	DefaultCacheTTL     = 60 * time.Second
	DefaultStoreTimeout = 3 * time.Second
)

// ContextLoader fetches a routing context from the document store. A nil
// context with a nil error means the agent has no provisioned context yet.
type ContextLoader func(ctx context.Context, agentID string) (*domain.RoutingContext, error)

// ContextCache memoizes per-agent routing contexts for a bounded TTL so
// resolution does not pay a store round-trip on every prompt. Loads run
// under a bounded timeout; a slow or unreachable store degrades to nil
// (no routing override) rather than blocking the agent turn. Nil results
// are never cached, so an unprovisioned agent re-queries on every call.
type ContextCache struct {
	load    ContextLoader
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry

	now func() time.Time
}

type cacheEntry struct {
	rc       *domain.RoutingContext
	loadedAt time.Time
}

// NewContextCache creates a cache over the given loader. Zero ttl/timeout
// use the package defaults.
func NewContextCache(load ContextLoader, ttl, timeout time.Duration, logger *slog.Logger) *ContextCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextCache{
		load:    load,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the agent's routing context, from cache when fresh. Returns
// nil when the context is not provisioned or the store is unavailable.
func (c *ContextCache) Get(ctx context.Context, agentID string) *domain.RoutingContext {
	c.mu.RLock()
	if e, ok := c.entries[agentID]; ok && c.now().Sub(e.loadedAt) < c.ttl {
		c.mu.RUnlock()
		return e.rc
	}
	c.mu.RUnlock()

	loadCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rc, err := c.load(loadCtx, agentID)
	if err != nil {
		c.logger.Warn("routing context load failed; proceeding without override",
			"agent_id", agentID, "error", err)
		return nil
	}
	if rc == nil {
		return nil
	}

	c.mu.Lock()
	c.entries[agentID] = cacheEntry{rc: rc, loadedAt: c.now()}
	c.mu.Unlock()
	return rc
}

// Invalidate drops the named agents' entries, or every entry when called
// with no arguments. Any code path mutating a routing context must call
// this before the next Get.
func (c *ContextCache) Invalidate(agentIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(agentIDs) == 0 {
		c.entries = make(map[string]cacheEntry)
		return
	}
	for _, id := range agentIDs {
		delete(c.entries, id)
	}
}
