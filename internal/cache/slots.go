package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlotCache is an optional Redis cache for slot query responses. Every profile
// write and booking bumps the tutor's version key, so stale entries stop
// matching immediately. The booking validator never reads from here.
type SlotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a slot cache. A nil client or non-positive TTL disables it.
func New(rdb *redis.Client, ttl time.Duration) *SlotCache {
	return &SlotCache{rdb: rdb, ttl: ttl}
}

func (c *SlotCache) enabled() bool {
	return c != nil && c.rdb != nil && c.ttl > 0
}

// Get loads a cached response into out, reporting whether it was found.
func (c *SlotCache) Get(ctx context.Context, tutorID int64, key string, out any) bool {
	if !c.enabled() {
		return false
	}
	val, err := c.rdb.Get(ctx, c.versionedKey(ctx, tutorID, key)).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

// Set stores a response under the tutor's current availability version.
func (c *SlotCache) Set(ctx context.Context, tutorID int64, key string, val any) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.versionedKey(ctx, tutorID, key), data, c.ttl).Err()
}

// Bump invalidates all cached slot responses for the tutor.
func (c *SlotCache) Bump(ctx context.Context, tutorID int64) {
	if !c.enabled() {
		return
	}
	_ = c.rdb.Incr(ctx, versionKey(tutorID)).Err()
}

func (c *SlotCache) versionedKey(ctx context.Context, tutorID int64, key string) string {
	ver, err := c.rdb.Get(ctx, versionKey(tutorID)).Result()
	if err != nil {
		ver = "0"
	}
	return fmt.Sprintf("slots:%d:%s:%s", tutorID, ver, key)
}

func versionKey(tutorID int64) string {
	return fmt.Sprintf("slots_ver:%d", tutorID)
}
