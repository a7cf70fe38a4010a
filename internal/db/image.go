package db

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ModerationApproved = "approved"
	ModerationPending  = "pending"
	ModerationBlocked  = "blocked"
)

// Image 定义帖子下的图片模型，DisplayIndex 决定帖子内的展示顺序。
type Image struct {
	gorm.Model
	PostID           uint `gorm:"index"`
	UserID           uint `gorm:"index"`
	DisplayIndex     int  `gorm:"default:0"`
	URL              string
	NSFW             bool `gorm:"column:nsfw;default:false"`
	Width            int
	Height           int
	Hash             string `gorm:"size:32;index"`
	Meta             datatypes.JSON
	ModerationStatus string `gorm:"size:16;default:approved;index"`
}
