// Package cache keeps search results for a short TTL: an in-process map,
// optionally backed by Redis so results survive restarts.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deusflow/sandboxbot/internal/logger"
	"github.com/deusflow/sandboxbot/internal/metrics"
)

const DefaultTTL = 300 * time.Second

type item struct {
	data      []byte
	expiresAt time.Time
}

// Cache is safe for concurrent use. Expired items are treated as absent
// and dropped when looked up.
type Cache[V any] struct {
	mu      sync.RWMutex
	items   map[string]item
	ttl     time.Duration
	now     func() time.Time
	rdb     *redis.Client
	metrics *metrics.Metrics
}

type Option func(*options)

type options struct {
	now     func() time.Time
	rdb     *redis.Client
	metrics *metrics.Metrics
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithRedis enables the second tier.
func WithRedis(rdb *redis.Client) Option { return func(o *options) { o.rdb = rdb } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

func New[V any](ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now, metrics: metrics.Global}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		items:   make(map[string]item),
		ttl:     ttl,
		now:     o.now,
		rdb:     o.rdb,
		metrics: o.metrics,
	}
}

// Connect opens the Redis tier. An empty URL or an unreachable server
// returns nil, and the cache runs in memory only.
func Connect(ctx context.Context, redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("cache: invalid redis URL, L2 disabled", "error", err)
		return nil
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("cache: redis unreachable, L2 disabled", "error", err)
		_ = rdb.Close()
		return nil
	}
	logger.Info("cache: L2 redis connected", "addr", opts.Addr)
	return rdb
}

// Key builds a deterministic key from parts.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("sb:%x", sum[:12])
}

func (c *Cache[V]) TTL() time.Duration { return c.ttl }

// Get checks memory first, then Redis. A Redis hit is copied into memory.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	if v, ok := c.getL1(key); ok {
		c.count("l1", "hit")
		return v, true
	}
	c.count("l1", "miss")

	if c.rdb == nil {
		return zero, false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Debug("cache: L2 get failed", "error", err)
		}
		c.count("l2", "miss")
		return zero, false
	}
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		c.count("l2", "miss")
		return zero, false
	}
	c.count("l2", "hit")
	c.store(key, data)
	return v, true
}

func (c *Cache[V]) getL1(key string) (V, bool) {
	var zero V
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if !c.now().Before(it.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur.expiresAt.Equal(it.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	var v V
	if err := json.Unmarshal(it.data, &v); err != nil {
		return zero, false
	}
	return v, true
}

// Set stores value in both tiers.
func (c *Cache[V]) Set(ctx context.Context, key string, value V) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn("cache: cannot encode value", "error", err)
		return
	}
	c.store(key, data)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logger.Debug("cache: L2 set failed", "error", err)
		}
	}
}

func (c *Cache[V]) store(key string, data []byte) {
	c.mu.Lock()
	c.items[key] = item{data: data, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Len counts in-memory entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache[V]) count(tier, result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(tier, result).Inc()
	}
}
