package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agendapro/agenda-api/internal/availability"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
)

// CacheRepository is the key/value store behind SlotCache.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// SlotCache memoises computed slot sets per staff member, date and
// required duration. Store failures degrade to recomputation and are only
// logged.
type SlotCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewSlotCache returns a cache over repo. A nil repo disables caching.
func NewSlotCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *SlotCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger}
}

// Enabled reports whether lookups reach a store.
func (c *SlotCache) Enabled() bool {
	return c != nil && c.repo != nil
}

// SlotKey is the cache key of one availability query. Duration is part of
// the key because distinct service selections yield distinct slot sets.
func SlotKey(staffID string, date time.Time, duration int) string {
	return fmt.Sprintf("slots:%s:%s:%d", staffID, date.Format(dateLayout), duration)
}

// Slots returns the cached slot set, if any.
func (c *SlotCache) Slots(ctx context.Context, staffID string, date time.Time, duration int) ([]availability.Clock, bool) {
	if !c.Enabled() {
		return nil, false
	}
	key := SlotKey(staffID, date, duration)
	start := time.Now()
	var slots []availability.Clock
	err := c.repo.Get(ctx, key, &slots)
	hit := err == nil
	if c.metrics != nil {
		c.metrics.RecordCacheOperation(hit, time.Since(start))
	}
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		c.logger.Warn("slot cache read failed", zap.String("key", key), zap.Error(err))
	}
	return slots, hit
}

// StoreSlots caches slots for the configured TTL.
func (c *SlotCache) StoreSlots(ctx context.Context, staffID string, date time.Time, duration int, slots []availability.Clock) {
	if !c.Enabled() {
		return
	}
	key := SlotKey(staffID, date, duration)
	if slots == nil {
		slots = []availability.Clock{}
	}
	start := time.Now()
	err := c.repo.Set(ctx, key, slots, c.ttl)
	if c.metrics != nil {
		c.metrics.ObserveCacheWrite(time.Since(start))
	}
	if err != nil {
		c.logger.Warn("slot cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateStaffSlots drops every cached slot set of a staff member. Used
// when windows change.
func (c *SlotCache) InvalidateStaffSlots(ctx context.Context, staffID string) error {
	return c.invalidate(ctx, fmt.Sprintf("slots:%s:*", staffID))
}

// InvalidateAll drops every cached slot set. Used when business-wide
// booking rules change.
func (c *SlotCache) InvalidateAll(ctx context.Context) error {
	return c.invalidate(ctx, "slots:*")
}

// InvalidateStaffDay drops the cached slot sets of one staff member and date.
func (c *SlotCache) InvalidateStaffDay(ctx context.Context, staffID string, date time.Time) error {
	return c.invalidate(ctx, fmt.Sprintf("slots:%s:%s:*", staffID, date.Format(dateLayout)))
}

func (c *SlotCache) invalidate(ctx context.Context, pattern string) error {
	if !c.Enabled() {
		return nil
	}
	removed, err := c.repo.DeleteByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", pattern, err)
	}
	if removed > 0 {
		c.logger.Debug("slot cache invalidated", zap.String("pattern", pattern), zap.Int("keys", removed))
	}
	return nil
}
