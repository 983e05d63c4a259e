package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
)

// DefaultJanitorInterval is how often expired geolocation results are purged.
const DefaultJanitorInterval = 10 * time.Minute

// CacheJanitor periodically deletes expired result cache rows.
type CacheJanitor struct {
	cache    ports.ResultCache
	interval time.Duration
}

// NewCacheJanitor creates a janitor. A non-positive interval uses DefaultJanitorInterval.
func NewCacheJanitor(cache ports.ResultCache, interval time.Duration) *CacheJanitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &CacheJanitor{cache: cache, interval: interval}
}

// Serve purges on every tick until ctx is cancelled.
func (j *CacheJanitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

func (j *CacheJanitor) purge(ctx context.Context) {
	n, err := j.cache.PurgeExpired(ctx)
	if err != nil {
		slog.Warn("cache purge failed", "error", err)
		return
	}
	if n > 0 {
		slog.Debug("purged expired cache entries", "count", n)
	}
}

func (j *CacheJanitor) String() string {
	return "cache-janitor"
}
