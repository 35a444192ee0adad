// Package cache keeps the public reward catalog in Redis.  The catalog is
// read on every portal page load and changes only through admin edits, so
// entries live for a short TTL and are dropped wholesale on any admin write.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/barangay-rewards/internal/config"
	"github.com/iliyamo/barangay-rewards/internal/model"
)

// Catalog caches ListActive results keyed by slot filter.  A nil client or
// a disabled config turns every method into a no-op, so callers never need
// to check whether Redis is available.
type Catalog struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *logrus.Logger
}

// NewCatalog builds a catalog cache.  rdb may be nil.
func NewCatalog(rdb *redis.Client, cfg config.CatalogCacheConfig, log *logrus.Logger) *Catalog {
	if !cfg.Enabled {
		rdb = nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "catalog"
	}
	return &Catalog{rdb: rdb, ttl: ttl, prefix: prefix, log: log}
}

// Enabled reports whether reads can hit Redis.
func (c *Catalog) Enabled() bool { return c != nil && c.rdb != nil }

func (c *Catalog) key(slot model.SlotCategory) string {
	if slot == "" {
		return c.prefix + ":all"
	}
	return c.prefix + ":slot:" + string(slot)
}

// Get returns the cached rows for slot.  Any Redis or decode error is a miss.
func (c *Catalog) Get(ctx context.Context, slot model.SlotCategory) ([]model.Reward, bool) {
	if !c.Enabled() {
		return nil, false
	}
	bs, err := c.rdb.Get(ctx, c.key(slot)).Bytes()
	if err != nil {
		if err != redis.Nil && c.log != nil {
			c.log.WithError(err).Warn("catalog cache get failed")
		}
		return nil, false
	}
	var rewards []model.Reward
	if err := json.Unmarshal(bs, &rewards); err != nil {
		return nil, false
	}
	return rewards, true
}

// Set stores rows for slot with the configured TTL.
func (c *Catalog) Set(ctx context.Context, slot model.SlotCategory, rewards []model.Reward) {
	if !c.Enabled() {
		return
	}
	bs, err := json.Marshal(rewards)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(slot), bs, c.ttl).Err(); err != nil && c.log != nil {
		c.log.WithError(err).Warn("catalog cache set failed")
	}
}

// Invalidate drops every catalog entry under the prefix.
func (c *Catalog) Invalidate(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	iter := c.rdb.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil && c.log != nil {
		c.log.WithError(err).Warn("catalog cache scan failed")
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil && c.log != nil {
		c.log.WithError(err).Warn("catalog cache invalidate failed")
	}
}
