package handler

import (
	"time"

	"github.com/tagfeed/internal/service"
	"gorm.io/gorm"
)

// FeedDefaults 是分类信息流在请求未指定时使用的默认值。
type FeedDefaults struct {
	CategoryLimit int
	PostLimit     int
	ImagesPerPost int
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db           *gorm.DB
	posts        *service.PostService
	tags         *service.TagService
	categories   *service.CategoryService
	users        *service.UserService
	feed         *service.FeedService
	images       *service.ImageService
	metrics      *service.MetricService
	feedDefaults FeedDefaults
	now          func() time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, uploadDir, uploadURL string, defaults FeedDefaults) *API {
	categories := service.NewCategoryService(db, service.NewDBCache(db))
	users := service.NewUserService(db)

	return &API{
		db:           db,
		posts:        service.NewPostService(db),
		tags:         service.NewTagService(db, categories),
		categories:   categories,
		users:        users,
		feed:         service.NewFeedService(db, categories, users).WithImagesPerPost(defaults.ImagesPerPost),
		images:       service.NewImageService(db, uploadDir, uploadURL),
		metrics:      service.NewMetricService(db),
		feedDefaults: defaults,
		now:          time.Now,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}
