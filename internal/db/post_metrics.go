package db

import "time"

// PostMetric 汇总帖子在某个时间窗口内的互动数据。
type PostMetric struct {
	ID           uint   `gorm:"primaryKey"`
	PostID       uint   `gorm:"uniqueIndex:idx_post_metric_timeframe"`
	Timeframe    string `gorm:"size:16;uniqueIndex:idx_post_metric_timeframe"`
	LikeCount    int64  `gorm:"default:0"`
	HeartCount   int64  `gorm:"default:0"`
	LaughCount   int64  `gorm:"default:0"`
	CryCount     int64  `gorm:"default:0"`
	CommentCount int64  `gorm:"default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName 指定自定义表名，避免自动复数化导致的歧义。
func (PostMetric) TableName() string {
	return "post_metrics"
}

// ReactionCount 返回所有反应类型的总数。
func (m PostMetric) ReactionCount() int64 {
	return m.LikeCount + m.HeartCount + m.LaughCount + m.CryCount
}

// PostReaction 记录用户对帖子的反应，同一用户同一类型只计一次。
type PostReaction struct {
	ID        uint   `gorm:"primaryKey"`
	PostID    uint   `gorm:"uniqueIndex:idx_post_reaction"`
	UserID    uint   `gorm:"uniqueIndex:idx_post_reaction"`
	Reaction  string `gorm:"size:16;uniqueIndex:idx_post_reaction"`
	CreatedAt time.Time
}

// TableName 指定自定义表名。
func (PostReaction) TableName() string {
	return "post_reactions"
}
