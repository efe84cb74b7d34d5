// Package querycache shares query reformulations between replicas through the
// key-value store.
package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/db"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/reformulate"
)

const cacheKind = "query"

var _ reformulate.Cache = (*Cache)(nil)

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache stores reformulate entries as JSON with SET ... EX.
type Cache struct {
	store      store
	keyPrefix  string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a cache. Entries expire server-side after ttl.
// cacheTotal takes labels (kind, result) and may be nil.
func New(s store, keyPrefix string, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = reformulate.DefaultTTL
	}
	return &Cache{
		store:      s,
		keyPrefix:  keyPrefix + "reformulation:",
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Get returns the cached entry for raw. Store failures count as misses.
func (c *Cache) Get(ctx context.Context, raw string) (reformulate.Entry, bool) {
	key := c.key(raw)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read cached reformulation", zap.String("key", key), zap.Error(err))
		}
		c.inc("miss")
		return reformulate.Entry{}, false
	}

	var e reformulate.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("Failed to decode cached reformulation", zap.String("key", key), zap.Error(err))
		c.inc("miss")
		return reformulate.Entry{}, false
	}
	c.inc("hit")
	return e, true
}

// Put stores entry for raw. Failures are logged and dropped.
func (c *Cache) Put(ctx context.Context, raw string, entry reformulate.Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("Failed to encode reformulation", zap.Error(err))
		return
	}
	key := c.key(raw)
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache reformulation", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) key(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return c.keyPrefix + hex.EncodeToString(h[:])
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(cacheKind, result).Inc()
	}
}
