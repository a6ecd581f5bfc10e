package cache

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
)

// TieredReportCache checks process memory first and a shared cache second.
// Shared hits are promoted into memory.
type TieredReportCache struct {
	memory *MemoryReportCache
	shared domain.ReportCache
	logger *logrus.Logger
}

// NewTieredReportCache combines the tiers. shared may be nil.
func NewTieredReportCache(memory *MemoryReportCache, shared domain.ReportCache, logger *logrus.Logger) *TieredReportCache {
	return &TieredReportCache{
		memory: memory,
		shared: shared,
		logger: logger,
	}
}

func (c *TieredReportCache) Get(ctx context.Context, contentHash string) (*domain.ValidationReport, bool) {
	if report, ok := c.memory.Get(ctx, contentHash); ok {
		c.logger.WithFields(logrus.Fields{
			"content_hash": contentHash,
			"cache_tier":   "memory",
		}).Debug("Validation report cache hit")
		return report, true
	}
	if c.shared == nil {
		return nil, false
	}

	report, ok := c.shared.Get(ctx, contentHash)
	if !ok {
		return nil, false
	}
	c.logger.WithFields(logrus.Fields{
		"content_hash": contentHash,
		"cache_tier":   "shared",
	}).Debug("Validation report cache hit")
	_ = c.memory.Set(ctx, contentHash, report)
	return report, true
}

// Set always fills memory; a shared-tier failure is returned for logging.
func (c *TieredReportCache) Set(ctx context.Context, contentHash string, report *domain.ValidationReport) error {
	_ = c.memory.Set(ctx, contentHash, report)
	if c.shared == nil {
		return nil
	}
	return c.shared.Set(ctx, contentHash, report)
}

// Stats returns the memory tier counters.
func (c *TieredReportCache) Stats() Stats {
	return c.memory.Stats()
}
