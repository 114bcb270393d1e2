// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tenant-scope/internal/model"
)

// Lookup methods partition the key space so invalidation can target one
// method without touching the other.
const (
	MethodSubdomain = "subdomain"
	MethodDomain    = "domain"

	keyPrefix = "tenant:"

	DefaultTTL = 300 * time.Second
)

// Key builds the composite cache key {method}:{value}.
func Key(method, value string) string {
	return method + ":" + value
}

// Recorder observes cache traffic. metrics.Metrics satisfies it.
type Recorder interface {
	ObserveCache(method, result string)
}

// RedisCache is the cache-aside store in front of the tenant directory.
// Reads that fail are misses and writes that fail are logged; neither is
// ever returned to the caller.
type RedisCache struct {
	client  redis.UniversalClient
	logger  *zap.Logger
	metrics Recorder
	now     func() time.Time
}

func NewRedisCache(client redis.UniversalClient, logger *zap.Logger, rec Recorder) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{
		client:  client,
		logger:  logger.Named("cache"),
		metrics: rec,
		now:     time.Now,
	}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string, timeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*model.CachedTenant, bool) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.observe(key, "miss")
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		c.observe(key, "error")
		return nil, false
	}

	cached, err := decodeEntry(data)
	if err != nil {
		c.logger.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		c.observe(key, "error")
		return nil, false
	}
	c.observe(key, "hit")
	return cached, true
}

var errIncompleteEntry = errors.New("incomplete cache entry")

// decodeEntry rejects values that parse as JSON but do not describe a tenant,
// such as null or {}.
func decodeEntry(data []byte) (*model.CachedTenant, error) {
	var cached *model.CachedTenant
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	switch {
	case cached == nil:
		return nil, fmt.Errorf("%w: null", errIncompleteEntry)
	case cached.TenantID == "" || cached.RegionID == "":
		return nil, fmt.Errorf("%w: missing tenant or region id", errIncompleteEntry)
	case !cached.Status.Valid():
		return nil, fmt.Errorf("%w: status %q", errIncompleteEntry, cached.Status)
	}
	return cached, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, tc *model.TenantContext, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(model.ToCached(tc, c.now()))
	if err != nil {
		c.logger.Error("cache entry unencodable", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.logger.Debug("cached tenant", zap.String("key", key), zap.String("tenant_id", tc.TenantID))
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
		return
	}
	c.logger.Debug("invalidated cache", zap.Strings("keys", keys))
}

// Ping reports whether the backing server is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) observe(key, result string) {
	if c.metrics == nil {
		return
	}
	method, _, _ := strings.Cut(key, ":")
	c.metrics.ObserveCache(method, result)
}

// NopCache never stores anything. It is used when Redis is disabled.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*model.CachedTenant, bool)          { return nil, false }
func (NopCache) Put(context.Context, string, *model.TenantContext, time.Duration) {}
func (NopCache) Invalidate(context.Context, ...string)                            {}
func (NopCache) Ping(context.Context) error                                       { return nil }
func (NopCache) Close() error                                                     { return nil }
