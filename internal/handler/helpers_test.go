package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tagfeed/internal/db"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) (*API, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	api := NewAPI(gdb, t.TempDir(), "/static/uploads", FeedDefaults{CategoryLimit: 10, PostLimit: 5, ImagesPerPost: 1})
	return api, gdb
}

func newTestContext(method, target string, body io.Reader, viewer uint) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, body)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if viewer != 0 {
		c.Set(viewerContextKey, viewer)
	}
	return c, w
}

func jsonBody(t *testing.T, payload interface{}) io.Reader {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return bytes.NewReader(body)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func seedUser(t *testing.T, gdb *gorm.DB, username string) db.User {
	t.Helper()
	user := db.User{Username: username, Password: "hashed"}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func seedPublishedPost(t *testing.T, gdb *gorm.DB, userID uint, title string, tags ...db.Tag) db.Post {
	t.Helper()
	published := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	post := db.Post{UserID: userID, Title: title, Detail: "**hello**<script>alert(1)</script>", PublishedAt: &published}
	if err := gdb.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	if len(tags) > 0 {
		if err := gdb.Model(&post).Association("Tags").Append(tags); err != nil {
			t.Fatalf("tag post: %v", err)
		}
	}
	image := db.Image{PostID: post.ID, UserID: userID, URL: "/static/uploads/seed.png", Width: 10, Height: 10, Meta: datatypes.JSON(`{}`)}
	if err := gdb.Create(&image).Error; err != nil {
		t.Fatalf("seed image: %v", err)
	}
	return post
}
