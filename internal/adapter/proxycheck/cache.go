package proxycheck

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shithost/sigma-dash/internal/domain"
)

// CacheObserver is told which layer answered a lookup: "memory", "shared" or "miss".
type CacheObserver interface {
	ObserveReputationCache(layer string)
}

// CachingChecker answers from an in-process cache, then the shared cache, then the
// live service. Only successful verdicts are stored.
type CachingChecker struct {
	next     domain.ReputationChecker
	mem      *memoryCache
	shared   domain.ReputationCache
	observer CacheObserver
}

var _ domain.ReputationChecker = (*CachingChecker)(nil)

// NewCachingChecker wraps next. shared and observer may be nil.
func NewCachingChecker(next domain.ReputationChecker, ttl time.Duration, clock clockwork.Clock, shared domain.ReputationCache, observer CacheObserver) *CachingChecker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachingChecker{
		next:     next,
		mem:      newMemoryCache(ttl, clock),
		shared:   shared,
		observer: observer,
	}
}

func (c *CachingChecker) Check(ctx context.Context, ip string) (domain.Reputation, error) {
	if rep, ok := c.mem.get(ip); ok {
		c.observe("memory")
		return rep, nil
	}

	if c.shared != nil {
		if rep, ok := c.shared.Get(ctx, ip); ok {
			c.observe("shared")
			c.mem.set(ip, rep)
			return rep, nil
		}
	}

	c.observe("miss")
	rep, err := c.next.Check(ctx, ip)
	if err != nil {
		return domain.Reputation{}, err
	}

	c.mem.set(ip, rep)
	if c.shared != nil {
		c.shared.Set(ctx, ip, rep)
	}
	return rep, nil
}

// EvictExpired drops stale in-process entries and returns how many were removed.
func (c *CachingChecker) EvictExpired() int {
	return c.mem.evictExpired()
}

// StartEvictionTimer evicts expired in-process entries every interval until the
// returned stop function is called.
func (c *CachingChecker) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.mem.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				if evicted := c.EvictExpired(); evicted > 0 {
					slog.Debug("Evicted expired reputation entries", "count", evicted, "remaining", c.mem.size())
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

func (c *CachingChecker) observe(layer string) {
	if c.observer != nil {
		c.observer.ObserveReputationCache(layer)
	}
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

type memoryCacheEntry struct {
	rep       domain.Reputation
	expiresAt time.Time
}

func newMemoryCache(ttl time.Duration, clock clockwork.Clock) *memoryCache {
	return &memoryCache{
		entries: make(map[string]memoryCacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (c *memoryCache) get(ip string) (domain.Reputation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[ip]
	if !ok || !c.clock.Now().Before(entry.expiresAt) {
		return domain.Reputation{}, false
	}
	return entry.rep, true
}

func (c *memoryCache) set(ip string, rep domain.Reputation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[ip] = memoryCacheEntry{rep: rep, expiresAt: c.clock.Now().Add(c.ttl)}
}

func (c *memoryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *memoryCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for ip, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, ip)
			evicted++
		}
	}
	return evicted
}
