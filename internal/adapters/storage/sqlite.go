package storage

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// SQLiteAdapter implements the result cache and the settings store using GORM and SQLite.
type SQLiteAdapter struct {
	db  *gorm.DB
	now func() time.Time
}

// CacheEntryModel is one cached geolocation answer.
type CacheEntryModel struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}

// SettingModel is a small key/value row for operator settings.
type SettingModel struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

// NewSQLiteAdapter opens the database at path, installs tracing and migrates the schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, &DatabaseError{Op: "open", Err: err}
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, &DatabaseError{Op: "install tracing", Err: err}
	}

	return newAdapter(db)
}

func newAdapter(db *gorm.DB) (*SQLiteAdapter, error) {
	// :memory: databases are per connection
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&CacheEntryModel{}, &SettingModel{}); err != nil {
		return nil, &DatabaseError{Op: "migrate", Err: err}
	}
	return &SQLiteAdapter{db: db, now: time.Now}, nil
}

func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DatabaseError wraps a failed storage operation.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}
