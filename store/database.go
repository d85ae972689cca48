package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// CounterEntry represents a row in the database
type CounterEntry struct {
	Key       string `gorm:"primaryKey"`
	Count     int64
	ExpiresAt time.Time
}

func (CounterEntry) TableName() string { return "rate_limit_counters" }

type DatabaseStore struct {
	db        *gorm.DB
	done      chan struct{}
	closeOnce sync.Once
}

func NewDatabaseStore(dsn string) (*DatabaseStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-create table if needed
	if err := db.AutoMigrate(&CounterEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Create index on ExpiresAt for cleanup queries
	if !db.Migrator().HasIndex(&CounterEntry{}, "expires_at") {
		db.Migrator().CreateIndex(&CounterEntry{}, "expires_at")
	}

	ds := &DatabaseStore{db: db, done: make(chan struct{})}

	// Background cleanup of expired rows
	go ds.sweepExpired()

	return ds, nil
}

// IncrementAndGet runs the increment as a single upsert so the
// read-modify-write happens inside the database, not in this process. The
// returned count is this caller's true position in the sequence.
func (ds *DatabaseStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var count int64
	err := ds.db.WithContext(ctx).Raw(`
		INSERT INTO rate_limit_counters (key, count, expires_at)
		VALUES (?, 1, ?)
		ON CONFLICT (key) DO UPDATE
		SET count = rate_limit_counters.count + 1
		RETURNING count`,
		key, time.Now().Add(ttl)).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Peek returns the current count, treating expired rows as absent.
func (ds *DatabaseStore) Peek(ctx context.Context, key string) (int64, error) {
	var entry CounterEntry
	result := ds.db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, time.Now()).
		First(&entry)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if result.Error != nil {
		return 0, result.Error
	}
	return entry.Count, nil
}

func (ds *DatabaseStore) Reset(ctx context.Context, key string) error {
	return ds.db.WithContext(ctx).Delete(&CounterEntry{}, "key = ?", key).Error
}

// CleanupExpired removes rows whose TTL has passed.
func (ds *DatabaseStore) CleanupExpired() error {
	return ds.db.Delete(&CounterEntry{}, "expires_at <= ?", time.Now()).Error
}

// Background cleanup of expired rows (runs every 5 minutes)
func (ds *DatabaseStore) sweepExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ds.done:
			return
		case <-ticker.C:
			_ = ds.CleanupExpired()
		}
	}
}

// Close stops the sweeper and closes the database connection.
func (ds *DatabaseStore) Close() error {
	ds.closeOnce.Do(func() { close(ds.done) })

	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
