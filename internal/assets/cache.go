package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// Cache stores signed URLs until they expire.
type Cache interface {
	Get(ctx context.Context, key string) (domain.SignedAccess, bool)
	Set(ctx context.Context, key string, entry domain.SignedAccess)
	Delete(ctx context.Context, key string)
}

const defaultMemoryCacheEntries = 10000

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]domain.SignedAccess
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache returns a cache holding at most maxEntries entries; zero
// selects a default.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryCacheEntries
	}
	return &MemoryCache{
		entries:    make(map[string]domain.SignedAccess),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (domain.SignedAccess, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return domain.SignedAccess{}, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		delete(c.entries, key)
		return domain.SignedAccess{}, false
	}
	return entry, true
}

func (c *MemoryCache) Set(_ context.Context, key string, entry domain.SignedAccess) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = entry
}

func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// evictLocked drops expired entries, then the entry closest to expiry if
// the cache is still full.
func (c *MemoryCache) evictLocked() {
	now := c.now()
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if !now.Before(e.ExpiresAt) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.ExpiresAt.Before(oldest) {
			oldestKey, oldest = k, e.ExpiresAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// RedisCache shares signed URLs between API replicas.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	logger    *infra.Logger
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(ctx context.Context, redisURL, keyPrefix string, logger *infra.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("assets: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("assets: connect to redis: %w", err)
	}
	return NewRedisCacheFromClient(client, keyPrefix, logger), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, keyPrefix string, logger *infra.Logger) *RedisCache {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	if keyPrefix == "" {
		keyPrefix = "signed:"
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (domain.SignedAccess, bool) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Msg("signed url cache read failed")
		}
		return domain.SignedAccess{}, false
	}
	var entry domain.SignedAccess
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.SignedAccess{}, false
	}
	if !time.Now().Before(entry.ExpiresAt) {
		return domain.SignedAccess{}, false
	}
	return entry, true
}

func (c *RedisCache) Set(ctx context.Context, key string, entry domain.SignedAccess) {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("signed url cache write failed")
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("signed url cache delete failed")
	}
}

// Close releases the redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
