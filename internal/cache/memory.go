// Package cache keeps validation reports keyed by scale content hash.
// A report depends only on definition content, so entries never need
// invalidation; TTLs only bound memory.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/clinimetric-scale-server/internal/domain"
)

// Stats represents cache performance statistics
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// MemoryReportCache is an in-process LRU with per-entry expiry.
type MemoryReportCache struct {
	lru    *expirable.LRU[string, *domain.ValidationReport]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryReportCache creates a cache holding at most size reports for ttl each.
func NewMemoryReportCache(size int, ttl time.Duration) *MemoryReportCache {
	if size <= 0 {
		size = 512
	}
	return &MemoryReportCache{
		lru: expirable.NewLRU[string, *domain.ValidationReport](size, nil, ttl),
	}
}

func (c *MemoryReportCache) Get(ctx context.Context, contentHash string) (*domain.ValidationReport, bool) {
	report, ok := c.lru.Get(contentHash)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return report, true
}

func (c *MemoryReportCache) Set(ctx context.Context, contentHash string, report *domain.ValidationReport) error {
	if contentHash == "" || report == nil {
		return nil
	}
	c.lru.Add(contentHash, report)
	return nil
}

// Stats returns hit and miss counters.
func (c *MemoryReportCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.lru.Len(),
	}
}
