package cache

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinimetric-scale-server/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func report(hash string) *domain.ValidationReport {
	return &domain.ValidationReport{ScaleID: "phq9", ContentHash: hash, IsValid: true}
}

type mapCache struct {
	reports map[string]*domain.ValidationReport
	setErr  error
}

func (m *mapCache) Get(ctx context.Context, hash string) (*domain.ValidationReport, bool) {
	r, ok := m.reports[hash]
	return r, ok
}

func (m *mapCache) Set(ctx context.Context, hash string, r *domain.ValidationReport) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.reports[hash] = r
	return nil
}

func TestMemoryReportCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryReportCache(2, time.Minute)

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", report("a")))
	require.NoError(t, c.Set(ctx, "b", report("b")))
	require.NoError(t, c.Set(ctx, "", report("ignored")))

	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ContentHash)

	// "b" is least recently used and is evicted.
	require.NoError(t, c.Set(ctx, "c", report("c")))
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 2, stats.Entries)
}

func TestMemoryReportCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryReportCache(10, 20*time.Millisecond)
	require.NoError(t, c.Set(ctx, "a", report("a")))

	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestTieredReportCache_PromotesSharedHits(t *testing.T) {
	ctx := context.Background()
	memory := NewMemoryReportCache(10, time.Minute)
	shared := &mapCache{reports: map[string]*domain.ValidationReport{"a": report("a")}}
	c := NewTieredReportCache(memory, shared, quietLogger())

	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ContentHash)

	_, ok = memory.Get(ctx, "a")
	assert.True(t, ok, "shared hit should be promoted to memory")

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestTieredReportCache_SharedFailure(t *testing.T) {
	ctx := context.Background()
	memory := NewMemoryReportCache(10, time.Minute)
	shared := &mapCache{reports: map[string]*domain.ValidationReport{}, setErr: errors.New("redis down")}
	c := NewTieredReportCache(memory, shared, quietLogger())

	assert.Error(t, c.Set(ctx, "a", report("a")))

	got, ok := c.Get(ctx, "a")
	require.True(t, ok, "memory tier still serves the report")
	assert.Equal(t, "a", got.ContentHash)
}

func TestTieredReportCache_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	c := NewTieredReportCache(NewMemoryReportCache(10, time.Minute), nil, quietLogger())

	require.NoError(t, c.Set(ctx, "a", report("a")))
	_, ok := c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
}

func TestNewRedisReportCache_Unreachable(t *testing.T) {
	_, err := NewRedisReportCache(domain.CacheConfig{RedisURL: "redis://127.0.0.1:1/0", MaxRetries: -1}, quietLogger())
	assert.Error(t, err)

	_, err = NewRedisReportCache(domain.CacheConfig{RedisURL: "not a url"}, quietLogger())
	assert.Error(t, err)
}

func TestRedisReportCache(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set, skipping Redis tests")
	}
	ctx := context.Background()

	c, err := NewRedisReportCache(domain.CacheConfig{RedisURL: redisURL, DefaultTTL: time.Minute}, quietLogger())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "redis-test", report("redis-test")))
	got, ok := c.Get(ctx, "redis-test")
	require.True(t, ok)
	assert.True(t, got.IsValid)

	_, ok = c.Get(ctx, "redis-absent")
	assert.False(t, ok)
}
