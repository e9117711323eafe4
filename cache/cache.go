// Package cache provides a read-through TTL cache backed by the secure store,
// for data that tolerates staleness (list views, detail payloads). Expiry is
// enforced lazily at read time; there is no background sweep.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/localspot/localspot-go/store"
	"github.com/rs/zerolog"
)

const keyPrefix = "cache/"

// NowTimeFunc returns the current time. It can be overridden per cache via
// WithNowTime.
var NowTimeFunc = time.Now

type entry struct {
	Data     json.RawMessage `json:"data"`
	StoredAt int64           `json:"storedAt"` // unix milliseconds
	TTLMs    int64           `json:"ttlMs"`
}

// Cache stores JSON-encoded values under a namespaced prefix in the secure
// store. Read failures of any kind degrade to a miss.
type Cache struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// WithNowTime sets the time source (primarily for testing).
func WithNowTime(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache on top of s.
func New(s store.Store, opts ...Option) *Cache {
	c := &Cache{
		store: s,
		log:   zerolog.Nop(),
		now:   NowTimeFunc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key with the given ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(entry{
		Data:     data,
		StoredAt: c.now().UnixMilli(),
		TTLMs:    ttl.Milliseconds(),
	})
	if err != nil {
		return err
	}
	return c.store.Set(ctx, keyPrefix+key, raw)
}

// Get reads the value for key into out and reports whether it was a hit.
// An entry older than its ttl is deleted and reported as a miss, so callers
// never observe stale data.
func (c *Cache) Get(ctx context.Context, key string, out any) bool {
	raw, err := c.store.Get(ctx, keyPrefix+key)
	if err != nil {
		if err != store.ErrNotFound {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt")
		return false
	}

	if c.now().UnixMilli()-e.StoredAt > e.TTLMs {
		if err := c.store.Delete(ctx, keyPrefix+key); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache expiry delete failed")
		}
		return false
	}

	if err := json.Unmarshal(e.Data, out); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache value decode failed")
		return false
	}
	return true
}

// Clear deletes the named entries, or every cached entry when called with no
// keys.
func (c *Cache) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		all, err := c.store.Keys(ctx, keyPrefix)
		if err != nil {
			return err
		}
		for _, k := range all {
			if err := c.store.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	}
	for _, key := range keys {
		if err := c.store.Delete(ctx, keyPrefix+key); err != nil {
			return err
		}
	}
	return nil
}
