package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
)

// GetHits returns cached hits for key. Expired rows are misses and are removed.
func (a *SQLiteAdapter) GetHits(ctx context.Context, key string) ([]domain.GeoHit, bool, error) {
	var entry CacheEntryModel
	err := a.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &DatabaseError{Op: "get cache entry", Err: err}
	}

	if !entry.ExpiresAt.After(a.now()) {
		if err := a.db.WithContext(ctx).Delete(&CacheEntryModel{}, "key = ?", key).Error; err != nil {
			return nil, false, &DatabaseError{Op: "delete expired entry", Err: err}
		}
		return nil, false, nil
	}

	hits, err := decodeHits(entry.Value)
	if err != nil {
		// A corrupt row is a miss; the next SetHits overwrites it.
		return nil, false, nil
	}
	return hits, true, nil
}

// SetHits stores hits under key for ttl.
func (a *SQLiteAdapter) SetHits(ctx context.Context, key string, hits []domain.GeoHit, ttl time.Duration) error {
	value, err := encodeHits(hits)
	if err != nil {
		return err
	}
	now := a.now().UTC()
	entry := CacheEntryModel{
		Key:       key,
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	err = a.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&entry).Error
	if err != nil {
		return &DatabaseError{Op: "set cache entry", Err: err}
	}
	return nil
}

// PurgeExpired deletes every expired entry and reports how many were removed.
func (a *SQLiteAdapter) PurgeExpired(ctx context.Context) (int64, error) {
	res := a.db.WithContext(ctx).Where("expires_at <= ?", a.now().UTC()).Delete(&CacheEntryModel{})
	if res.Error != nil {
		return 0, &DatabaseError{Op: "purge cache", Err: res.Error}
	}
	return res.RowsAffected, nil
}

var _ ports.ResultCache = (*SQLiteAdapter)(nil)
