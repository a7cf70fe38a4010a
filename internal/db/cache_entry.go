package db

import "time"

// CacheEntry 存储可共享的键值快照，ExpiresAt 为空表示不过期。
type CacheEntry struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"size:191;uniqueIndex;not null"`
	Value     string `gorm:"type:text"`
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 自定义表名以保持命名一致。
func (CacheEntry) TableName() string {
	return "cache_entries"
}
