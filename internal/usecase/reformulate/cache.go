package reformulate

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// DefaultTTL is how long a cached reformulation stays valid.
const DefaultTTL = 24 * time.Hour

// Entry is a cached reformulation.
type Entry struct {
	Attributes domain.QueryAttributes `json:"attributes"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Cache stores reformulations by raw query. Implementations must be safe for
// concurrent use; a lookup failure is reported as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool)
	Put(ctx context.Context, key string, entry Entry)
}

// MemoryCache is an in-process Cache bounded by entry count.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// NewMemoryCache creates a cache holding at most maxEntries entries (0 = unbounded).
// Entries older than ttl are dropped first when the cache is full.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]Entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the entry for key.
func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put stores entry under key, evicting when full.
func (c *MemoryCache) Put(_ context.Context, key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = entry
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) evictLocked() {
	now := c.now()
	for k, e := range c.entries {
		if c.ttl > 0 && now.Sub(e.CreatedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.CreatedAt.Before(oldest) {
			oldestKey, oldest, found = k, e.CreatedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}
