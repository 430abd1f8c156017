package profiles

import (
	"context"
	"sync"
	"time"

	"github.com/storyforge/storyforge/pkg/entitlements"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Cache lookup results reported to the lookup observer.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

const preloadConcurrency = 8

type cacheEntry struct {
	profile *Profile
	expires time.Time
}

// Cache keeps recently read profiles in memory for a bounded time. It
// implements Store: writes go to the backing store and evict the entry.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry

	// gens counts invalidations per id. A load only fills the cache if no
	// write invalidated the id while it was reading the store.
	gens  map[string]uint64
	group singleflight.Group

	onLookup func(result string)
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithLookupObserver reports every Get as CacheHit or CacheMiss.
func WithLookupObserver(fn func(result string)) CacheOption {
	return func(c *Cache) { c.onLookup = fn }
}

// NewCache wraps store. A zero ttl disables caching but still collapses
// concurrent loads of the same profile.
func NewCache(store Store, ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
		gens:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the profile, loading it from the store when the
// cached entry is missing or stale.
func (c *Cache) Get(ctx context.Context, id string) (*Profile, error) {
	if p, ok := c.lookup(id); ok {
		c.observe(CacheHit)
		return p, nil
	}
	c.observe(CacheMiss)

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		c.mu.RLock()
		gen := c.gens[id]
		c.mu.RUnlock()

		p, err := c.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			if c.gens[id] == gen {
				c.entries[id] = cacheEntry{profile: p, expires: c.now().Add(c.ttl)}
			}
			c.mu.Unlock()
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Profile).Clone(), nil
}

func (c *Cache) lookup(id string) (*Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[id]
	if !ok || !c.now().Before(entry.expires) {
		return nil, false
	}
	return entry.profile.Clone(), true
}

// Invalidate drops the cached entry for id. A load already in flight for id
// still returns to its callers but is not cached.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.gens[id]++
	c.mu.Unlock()
	c.group.Forget(id)
}

// Len returns the number of cached entries, including stale ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Preload warms the cache for ids. Missing profiles are skipped.
func (c *Cache) Preload(ctx context.Context, ids []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := c.Get(ctx, id)
			if err != nil && !isNotFound(err) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Create passes through; new profiles are not cached until read.
func (c *Cache) Create(ctx context.Context, email string, tier entitlements.Tier) (*Profile, error) {
	return c.store.Create(ctx, email, tier)
}

// GetByEmail always reads the store since entries are keyed by ID.
func (c *Cache) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return c.store.GetByEmail(ctx, email)
}

func (c *Cache) List(ctx context.Context) ([]*Profile, error) {
	return c.store.List(ctx)
}

// Usage reads counters through the cache.
func (c *Cache) Usage(ctx context.Context, id string) (map[entitlements.Capability]int64, error) {
	p, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Usage, nil
}

func (c *Cache) SetTier(ctx context.Context, id string, tier entitlements.Tier) (entitlements.Tier, error) {
	defer c.Invalidate(id)
	return c.store.SetTier(ctx, id, tier)
}

func (c *Cache) IncrementUsage(ctx context.Context, id string, capability entitlements.Capability, delta int64) (int64, error) {
	defer c.Invalidate(id)
	return c.store.IncrementUsage(ctx, id, capability, delta)
}

func (c *Cache) ResetUsage(ctx context.Context, id string, capability entitlements.Capability) error {
	defer c.Invalidate(id)
	return c.store.ResetUsage(ctx, id, capability)
}

// Close closes the backing store.
func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) observe(result string) {
	if c.onLookup != nil {
		c.onLookup(result)
	}
}
