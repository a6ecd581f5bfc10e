package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
)

const keyPrefix = "clinimetric:report:"

// RedisReportCache shares validation reports between server instances.
type RedisReportCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// cachedReport represents a cached report with metadata
type cachedReport struct {
	Report   *domain.ValidationReport `json:"report"`
	CachedAt time.Time                `json:"cached_at"`
}

// NewRedisReportCache connects to Redis and verifies the connection.
func NewRedisReportCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisReportCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries != 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisReportCache{
		redis:      client,
		defaultTTL: config.DefaultTTL,
		logger:     logger,
	}, nil
}

func (c *RedisReportCache) Get(ctx context.Context, contentHash string) (*domain.ValidationReport, bool) {
	key := keyPrefix + contentHash

	val, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("content_hash", contentHash).Warn("Redis report lookup failed")
		return nil, false
	}

	var cached cachedReport
	if err := json.Unmarshal(val, &cached); err != nil || cached.Report == nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false
	}
	return cached.Report, true
}

func (c *RedisReportCache) Set(ctx context.Context, contentHash string, report *domain.ValidationReport) error {
	if contentHash == "" || report == nil {
		return nil
	}

	data, err := json.Marshal(cachedReport{Report: report, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return c.redis.Set(ctx, keyPrefix+contentHash, data, c.defaultTTL).Err()
}

// Ping checks the Redis connection for health endpoints.
func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (c *RedisReportCache) Close() error {
	return c.redis.Close()
}
