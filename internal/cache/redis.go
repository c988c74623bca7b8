package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"framegate/internal/logging"
)

const DefaultKeyPrefix = "framegate:resp:"

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisCache shares rendered responses between framegate replicas. Entries
// expire natively in Redis at their ExpiresAt.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
	logger logging.Logger
	now    func() time.Time
}

func NewRedisCache(cfg RedisConfig, logger logging.Logger) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisCache(rdb, cfg.KeyPrefix, logger)
}

func newRedisCache(rdb redis.UniversalClient, prefix string, logger logging.Logger) *RedisCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &RedisCache{rdb: rdb, prefix: prefix, logger: logger, now: time.Now}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("response cache get failed", "key", key, "err", err)
		return nil, false
	}

	resp, err := decodeResponse(b)
	if err != nil {
		c.logger.Warn("response cache entry unreadable", "key", key, "err", err)
		return nil, false
	}
	if resp.Expired(c.now()) {
		return nil, false
	}
	return resp, true
}

func (c *RedisCache) Set(ctx context.Context, key string, resp *CachedResponse) {
	var ttl time.Duration
	if !resp.ExpiresAt.IsZero() {
		ttl = resp.ExpiresAt.Sub(c.now())
		if ttl <= 0 {
			return
		}
	}

	b, err := encodeResponse(resp)
	if err != nil {
		c.logger.Warn("response cache encode failed", "key", key, "err", err)
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, b, ttl).Err(); err != nil {
		c.logger.Warn("response cache set failed", "key", key, "err", err)
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.Warn("response cache delete failed", "key", key, "err", err)
	}
}

// Purge removes every key under the cache prefix.
func (c *RedisCache) Purge(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	var batch []string
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
			c.logger.Warn("response cache purge failed", "err", err)
		}
		batch = batch[:0]
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 500 {
			flush()
		}
	}
	flush()
	if err := iter.Err(); err != nil {
		c.logger.Warn("response cache scan failed", "err", err)
	}
}

func encodeResponse(resp *CachedResponse) ([]byte, error) {
	return json.Marshal(resp)
}

func decodeResponse(b []byte) (*CachedResponse, error) {
	var resp CachedResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
