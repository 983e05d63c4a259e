package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
	"github.com/lcalzada-xor/geoprobe/internal/geo"
)

const baseLocationKey = "base_location"

// GetBase returns the stored reference point, or nil when none is set.
func (a *SQLiteAdapter) GetBase(ctx context.Context) (*geo.Location, error) {
	var row SettingModel
	err := a.db.WithContext(ctx).First(&row, "key = ?", baseLocationKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &DatabaseError{Op: "get base location", Err: err}
	}
	return decodeLocation(row.Value)
}

// SetBase validates and stores the reference point.
func (a *SQLiteAdapter) SetBase(ctx context.Context, loc geo.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	value, err := encodeLocation(loc)
	if err != nil {
		return err
	}
	row := SettingModel{Key: baseLocationKey, Value: value, UpdatedAt: a.now()}
	if err := a.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return &DatabaseError{Op: "set base location", Err: err}
	}
	return nil
}

// ClearBase removes the reference point. Clearing an unset point is not an error.
func (a *SQLiteAdapter) ClearBase(ctx context.Context) error {
	if err := a.db.WithContext(ctx).Delete(&SettingModel{}, "key = ?", baseLocationKey).Error; err != nil {
		return &DatabaseError{Op: "clear base location", Err: err}
	}
	return nil
}

var _ ports.BaseLocationStore = (*SQLiteAdapter)(nil)
