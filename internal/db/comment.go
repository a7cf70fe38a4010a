package db

import "gorm.io/gorm"

// Comment 定义帖子评论。
type Comment struct {
	gorm.Model
	PostID  uint `gorm:"index"`
	UserID  uint
	Content string `gorm:"type:text"`
}
