package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/tagfeed/internal/db"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, username string) db.User {
	t.Helper()
	user := db.User{Username: username, Password: "hashed"}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func seedCategory(t *testing.T, gdb *gorm.DB, name, color string) db.Tag {
	t.Helper()
	tag := db.Tag{Name: name, Color: color, IsCategory: true, Targets: db.TagTargetPost}
	if err := gdb.Create(&tag).Error; err != nil {
		t.Fatalf("seed category %s: %v", name, err)
	}
	return tag
}

func seedPost(t *testing.T, gdb *gorm.DB, userID uint, title string, publishedAt time.Time, tags ...db.Tag) db.Post {
	t.Helper()
	published := publishedAt.UTC()
	post := db.Post{UserID: userID, Title: title, PublishedAt: &published}
	if err := gdb.Create(&post).Error; err != nil {
		t.Fatalf("seed post %s: %v", title, err)
	}
	if len(tags) > 0 {
		if err := gdb.Model(&post).Association("Tags").Append(tags); err != nil {
			t.Fatalf("tag post %s: %v", title, err)
		}
	}
	return post
}

func seedImage(t *testing.T, gdb *gorm.DB, post db.Post, index int) db.Image {
	t.Helper()
	image := db.Image{
		PostID:           post.ID,
		UserID:           post.UserID,
		DisplayIndex:     index,
		URL:              fmt.Sprintf("/static/uploads/%d-%d.png", post.ID, index),
		Width:            512,
		Height:           768,
		Meta:             datatypes.JSON(`{}`),
		ModerationStatus: db.ModerationApproved,
	}
	if err := gdb.Create(&image).Error; err != nil {
		t.Fatalf("seed image for post %d: %v", post.ID, err)
	}
	return image
}

func seedMetric(t *testing.T, gdb *gorm.DB, postID uint, tf Timeframe, likes, comments int64) {
	t.Helper()
	metric := db.PostMetric{PostID: postID, Timeframe: string(tf), LikeCount: likes, CommentCount: comments}
	if err := gdb.Create(&metric).Error; err != nil {
		t.Fatalf("seed metric for post %d: %v", postID, err)
	}
}

func uintPtr(v uint) *uint {
	return &v
}
