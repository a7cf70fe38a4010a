package service

import (
	"context"
	"errors"
	"time"

	"github.com/tagfeed/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cache is the key/value capability the category resolver reads through.
// Implementations need not be exclusive; concurrent writers race and the
// last write wins.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// DBCache 将缓存条目保存在 cache_entries 表中，供多个进程共享。
type DBCache struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDBCache creates a DBCache instance.
func NewDBCache(gdb *gorm.DB) *DBCache {
	return &DBCache{db: gdb, now: time.Now}
}

// Get 读取缓存，过期条目视为未命中。
func (c *DBCache) Get(ctx context.Context, key string) (string, bool, error) {
	var entry db.CacheEntry
	if err := c.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if entry.ExpiresAt != nil && !entry.ExpiresAt.After(c.now()) {
		return "", false, nil
	}
	return entry.Value, true, nil
}

// Set 写入不过期的缓存条目，已存在时覆盖。
func (c *DBCache) Set(ctx context.Context, key, value string) error {
	return c.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL 写入缓存条目，ttl <= 0 表示不过期。
func (c *DBCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	entry := db.CacheEntry{Key: key, Value: value}
	if ttl > 0 {
		expires := c.now().Add(ttl)
		entry.ExpiresAt = &expires
	}

	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

// Delete 删除缓存条目，不存在时不报错。
func (c *DBCache) Delete(ctx context.Context, key string) error {
	return c.db.WithContext(ctx).Where("key = ?", key).Delete(&db.CacheEntry{}).Error
}
