package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const muteHashKey = "alerts:mutes"

// Cache wraps the Redis client used for telemetry caching and mute
// persistence. Redis being down degrades to cache misses and unpersisted
// mutes; it never fails a request.
type Cache struct {
	redis *redis.Client
	cfg   *config.Config
}

// CachedValue represents a cached value with metadata
type CachedValue struct {
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// NewCache creates a new cache instance
func NewCache(cfg *config.Config) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logrus.Warn("Redis connection failed, caching and mute persistence degraded:", err)
	} else {
		logrus.Info("Redis connection established successfully")
	}

	return &Cache{
		redis: rdb,
		cfg:   cfg,
	}
}

// Ping checks if Redis is available
func (c *Cache) Ping() error {
	return c.redis.Ping(context.Background()).Err()
}

// Get retrieves a value from cache
func (c *Cache) Get(ctx context.Context, key string) (*CachedValue, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var cached CachedValue
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return nil, err
	}

	return &cached, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	cached := CachedValue{
		Data:      value,
		Timestamp: time.Now().Unix(),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}

	return c.redis.Set(ctx, key, data, ttl).Err()
}

// Delete removes a key from cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.redis.Del(ctx, key).Err()
}

// GetMutes loads the persisted mute table. Expiries are stored as unix
// seconds in a single hash keyed by the alert key string.
func (c *Cache) GetMutes(ctx context.Context) (map[string]time.Time, error) {
	fields, err := c.redis.HGetAll(ctx, muteHashKey).Result()
	if err != nil {
		return nil, err
	}

	mutes := make(map[string]time.Time, len(fields))
	for key, raw := range fields {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logrus.Warnf("Dropping mute %s with bad expiry %q", key, raw)
			continue
		}
		mutes[key] = time.Unix(sec, 0)
	}
	return mutes, nil
}

// SaveMutes replaces the persisted mute table.
func (c *Cache) SaveMutes(ctx context.Context, mutes map[string]time.Time) error {
	pipe := c.redis.TxPipeline()
	pipe.Del(ctx, muteHashKey)
	if len(mutes) > 0 {
		fields := make(map[string]interface{}, len(mutes))
		for key, until := range mutes {
			fields[key] = strconv.FormatInt(until.Unix(), 10)
		}
		pipe.HSet(ctx, muteHashKey, fields)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Unmarshal unmarshals cached data into the provided interface
func (cv *CachedValue) Unmarshal(v interface{}) error {
	data, err := json.Marshal(cv.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
