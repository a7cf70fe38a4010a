package db

import (
	"strings"

	"gorm.io/gorm"
)

const (
	// TagTargetPost 表示标签可用于帖子分类。
	TagTargetPost = "Post"
	// TagTargetImage 表示标签可用于图片。
	TagTargetImage = "Image"
)

// Tag 定义了标签模型
type Tag struct {
	gorm.Model
	Name       string `gorm:"unique;not null"`
	Color      string
	IsCategory bool   `gorm:"default:false"`
	Targets    string // 逗号分隔，例如 "Post,Image"
	SortOrder  int    `gorm:"default:0"`
	PostCount  int64  `gorm:"->;-:migration"`
	Posts      []Post `gorm:"many2many:post_tags;" json:"-"`
}

// HasTarget 判断标签是否适用于指定目标。
func (t Tag) HasTarget(target string) bool {
	for _, part := range strings.Split(t.Targets, ",") {
		if strings.EqualFold(strings.TrimSpace(part), target) {
			return true
		}
	}
	return false
}
