// Package cache holds the optional Redis-backed catalog listing cache.
// The bot works without Redis; a nil *Catalog (or a Catalog over a nil
// client) behaves as a permanent miss.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"

	"github.com/FAST22588/bot-Discord-v3/internal/models"
)

const catalogKey = "shopbot:catalog"

// InitRedis connects to Redis using viper config, returning nil (not an
// error) when Redis is unreachable so the bot degrades to uncached
// listings.
func InitRedis(ctx context.Context) *redis.Client {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	addr := viper.GetString("redis.host") + ":" + viper.GetString("redis.port")
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil
	}
	return rdb
}

// Catalog caches the sorted catalog listing under one key. Admin writes
// invalidate it.
type Catalog struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCatalog(rdb *redis.Client, ttl time.Duration) *Catalog {
	return &Catalog{rdb: rdb, ttl: ttl}
}

// Get returns the cached listing and whether it was present.
func (c *Catalog) Get(ctx context.Context) ([]models.CatalogItem, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, catalogKey).Bytes()
	if err != nil {
		return nil, false
	}
	var items []models.CatalogItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

// Set stores the listing best-effort; cache failures are invisible to
// callers.
func (c *Catalog) Set(ctx context.Context, items []models.CatalogItem) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, catalogKey, raw, c.ttl)
}

// Invalidate drops the cached listing after a catalog mutation.
func (c *Catalog) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	c.rdb.Del(ctx, catalogKey)
}
