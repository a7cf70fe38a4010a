package db

import (
	"time"

	"gorm.io/gorm"
)

// Post 定义了作品帖子模型。PublishedAt 为空表示草稿。
type Post struct {
	gorm.Model
	UserID         uint       `gorm:"index"`
	User           User       `json:"-"`
	Title          string     `gorm:"not null"`
	Detail         string     `gorm:"type:text"`
	NSFW           bool       `gorm:"column:nsfw;default:false"`
	ModelID        *uint      `gorm:"index"`
	ModelVersionID *uint      `gorm:"index"`
	PublishedAt    *time.Time `gorm:"index"`
	Tags           []Tag      `gorm:"many2many:post_tags;"`
	Images         []Image
}

// IsPublished 判断帖子是否已发布。
func (p Post) IsPublished() bool {
	return p.PublishedAt != nil && !p.PublishedAt.IsZero()
}
