package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tagfeed/internal/db"
	"gorm.io/gorm"
)

var (
	ErrPostNotFound      = errors.New("post not found")
	ErrPostForbidden     = errors.New("post belongs to another user")
	ErrPostTitleRequired = errors.New("post title is required")
)

// PostService wraps post related database operations.
type PostService struct {
	db  *gorm.DB
	now func() time.Time
}

// PostInput represents fields accepted when creating or updating a post.
type PostInput struct {
	Title          string
	Detail         string
	NSFW           bool
	ModelID        *uint
	ModelVersionID *uint
	TagIDs         []uint
	UserID         uint
}

// PostCursorQuery describes a newest-first page of published posts.
type PostCursorQuery struct {
	Cursor *uint
	Limit  int
	UserID *uint
	TagID  *uint
}

// PostCursorPage 是按 id 倒序的一页帖子。
type PostCursorPage struct {
	Items      []db.Post
	NextCursor *uint
}

// NewPostService creates a PostService instance.
func NewPostService(gdb *gorm.DB) *PostService {
	return &PostService{db: gdb, now: time.Now}
}

// Get fetches a post by id with tags, images and user preloaded.
func (s *PostService) Get(ctx context.Context, id uint) (*db.Post, error) {
	var post db.Post
	if err := s.db.WithContext(ctx).
		Preload("Tags").
		Preload("User").
		Preload("Images", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("display_index asc").Order("id asc")
		}).
		First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// Create persists a draft post and associates tags in a transaction.
func (s *PostService) Create(ctx context.Context, input PostInput) (*db.Post, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrPostTitleRequired
	}

	post := db.Post{
		UserID:         input.UserID,
		Title:          title,
		Detail:         input.Detail,
		NSFW:           input.NSFW,
		ModelID:        input.ModelID,
		ModelVersionID: input.ModelVersionID,
	}

	return s.saveWithTags(ctx, &post, input.TagIDs)
}

// Update applies updates to an existing post owned by input.UserID.
func (s *PostService) Update(ctx context.Context, id uint, input PostInput) (*db.Post, error) {
	existing, err := s.owned(ctx, id, input.UserID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrPostTitleRequired
	}

	existing.Title = title
	existing.Detail = input.Detail
	existing.NSFW = input.NSFW
	existing.ModelID = input.ModelID
	existing.ModelVersionID = input.ModelVersionID

	return s.saveWithTags(ctx, existing, input.TagIDs)
}

// Publish 设置发布时间，未指定时使用当前时间。
func (s *PostService) Publish(ctx context.Context, id, userID uint, publishedAt *time.Time) (*db.Post, error) {
	post, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	publishTime := s.now()
	if publishedAt != nil && !publishedAt.IsZero() {
		publishTime = *publishedAt
	}
	publishTime = publishTime.UTC()

	if err := s.db.WithContext(ctx).Model(&db.Post{}).
		Where("id = ?", post.ID).
		Update("published_at", publishTime).Error; err != nil {
		return nil, err
	}

	return s.Get(ctx, post.ID)
}

// Delete removes a post owned by userID.
func (s *PostService) Delete(ctx context.Context, id, userID uint) error {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&db.Post{}, id).Error
}

// ListCursor 返回已发布帖子，按 id 倒序做游标分页，新插入的帖子不会打乱后续页。
func (s *PostService) ListCursor(ctx context.Context, query PostCursorQuery) (PostCursorPage, error) {
	limit := clampLimit(query.Limit, 20, 100)

	q := s.db.WithContext(ctx).Model(&db.Post{}).
		Preload("Tags").
		Preload("Images", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("moderation_status = ?", db.ModerationApproved).
				Order("display_index asc").
				Order("id asc")
		}).
		Where("posts.published_at IS NOT NULL").
		Where("posts.published_at <= ?", s.now().UTC())

	if query.Cursor != nil {
		q = q.Where("posts.id < ?", *query.Cursor)
	}
	if query.UserID != nil {
		q = q.Where("posts.user_id = ?", *query.UserID)
	}
	if query.TagID != nil {
		q = q.Where("posts.id IN (?)", s.db.Table("post_tags").Select("post_id").Where("tag_id = ?", *query.TagID))
	}

	var posts []db.Post
	if err := q.Order("posts.id desc").Limit(limit + 1).Find(&posts).Error; err != nil {
		return PostCursorPage{}, err
	}

	page := PostCursorPage{Items: posts}
	if len(posts) > limit {
		page.Items = posts[:limit]
		next := page.Items[limit-1].ID
		page.NextCursor = &next
	}
	return page, nil
}

func (s *PostService) owned(ctx context.Context, id, userID uint) (*db.Post, error) {
	var post db.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if post.UserID != userID {
		return nil, ErrPostForbidden
	}
	return &post, nil
}

func (s *PostService) saveWithTags(ctx context.Context, post *db.Post, tagIDs []uint) (*db.Post, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags").Save(post).Error; err != nil {
			return err
		}

		var tags []db.Tag
		if len(tagIDs) > 0 {
			unique := mergeIDs(tagIDs)
			if err := tx.Where("id IN ?", unique).Find(&tags).Error; err != nil {
				return err
			}

			if len(tags) != len(unique) {
				return ErrTagNotFound
			}
		}

		if err := tx.Model(post).Association("Tags").Replace(tags); err != nil {
			return err
		}

		return tx.Preload("Tags").First(post, post.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}
