// Package cache keeps short-lived copies of seat availability in Redis so
// that bursts of seat-info reads do not each hit Postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pkordes/busline/backend/internal/domain"
)

// DefaultTTL bounds how stale a cached seat view can get when an
// invalidation is lost.
const DefaultTTL = 2 * time.Second

// SeatInfo is a Redis-backed seat availability cache.
type SeatInfo struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewSeatInfo returns a cache storing entries in rdb for ttl.
// A non-positive ttl falls back to DefaultTTL.
func NewSeatInfo(rdb redis.Cmdable, ttl time.Duration) *SeatInfo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SeatInfo{rdb: rdb, ttl: ttl}
}

// Key returns the Redis key holding the availability of tripID.
func Key(tripID uuid.UUID) string {
	return fmt.Sprintf("seats:%s", tripID.String())
}

// Get returns the cached availability of tripID. The bool is false on a miss.
func (c *SeatInfo) Get(ctx context.Context, tripID uuid.UUID) (domain.SeatInfo, bool, error) {
	raw, err := c.rdb.Get(ctx, Key(tripID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SeatInfo{}, false, nil
	}
	if err != nil {
		return domain.SeatInfo{}, false, fmt.Errorf("cache.SeatInfo.Get: %w", err)
	}

	var info domain.SeatInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return domain.SeatInfo{}, false, fmt.Errorf("cache.SeatInfo.Get: decode: %w", err)
	}
	return info, true, nil
}

// Set stores info under its trip's key for the cache TTL, or for maxAge when
// that is positive and shorter.
func (c *SeatInfo) Set(ctx context.Context, info domain.SeatInfo, maxAge time.Duration) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("cache.SeatInfo.Set: encode: %w", err)
	}
	ttl := c.ttl
	if maxAge > 0 && maxAge < ttl {
		ttl = maxAge
	}
	if err := c.rdb.Set(ctx, Key(info.TripID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache.SeatInfo.Set: %w", err)
	}
	return nil
}

// Invalidate drops the cached availability of tripID.
func (c *SeatInfo) Invalidate(ctx context.Context, tripID uuid.UUID) error {
	if err := c.rdb.Del(ctx, Key(tripID)).Err(); err != nil {
		return fmt.Errorf("cache.SeatInfo.Invalidate: %w", err)
	}
	return nil
}
