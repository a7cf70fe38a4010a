package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tagfeed/internal/db"
	"gorm.io/gorm"
)

var (
	ErrTagExists       = errors.New("tag already exists")
	ErrTagInUse        = errors.New("tag is associated with posts")
	ErrTagNotFound     = errors.New("tag not found")
	ErrTagOrder        = errors.New("invalid tag order")
	ErrTagNameRequired = errors.New("tag name is required")
)

// TagService wraps tag related operations.
type TagService struct {
	db         *gorm.DB
	categories *CategoryService
}

// TagInput represents fields accepted when creating or updating a tag.
type TagInput struct {
	Name       string
	Color      string
	IsCategory bool
	Targets    []string
}

// NewTagService creates a TagService instance. Writes invalidate the
// category snapshot held by categories when it is non-nil.
func NewTagService(gdb *gorm.DB, categories *CategoryService) *TagService {
	return &TagService{db: gdb, categories: categories}
}

// List returns tags ordered by configured sort order, with post counts.
func (s *TagService) List(ctx context.Context) ([]db.Tag, error) {
	var tags []db.Tag
	if err := s.db.WithContext(ctx).
		Model(&db.Tag{}).
		Select("tags.*, COUNT(post_tags.post_id) AS post_count").
		Joins("LEFT JOIN post_tags ON post_tags.tag_id = tags.id").
		Group("tags.id").
		Order("tags.sort_order asc").
		Order("tags.name asc").
		Order("tags.id asc").
		Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// Create inserts a new tag with unique name.
func (s *TagService) Create(ctx context.Context, input TagInput) (*db.Tag, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTagNameRequired
	}

	var existing db.Tag
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&existing).Error; err == nil {
		return nil, ErrTagExists
	}

	sortOrder, err := s.nextSortOrder(ctx)
	if err != nil {
		return nil, err
	}

	tag := db.Tag{
		Name:       name,
		Color:      normalizeColor(input.Color),
		IsCategory: input.IsCategory,
		Targets:    normalizeTargets(input.Targets),
		SortOrder:  sortOrder,
	}
	if err := s.db.WithContext(ctx).Create(&tag).Error; err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return &tag, nil
}

// Update changes the tag while keeping name uniqueness.
func (s *TagService) Update(ctx context.Context, id uint, input TagInput) (*db.Tag, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTagNameRequired
	}

	var tag db.Tag
	if err := s.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}

	var existing db.Tag
	if err := s.db.WithContext(ctx).Where("name = ? AND id <> ?", name, id).First(&existing).Error; err == nil {
		return nil, ErrTagExists
	}

	tag.Name = name
	tag.Color = normalizeColor(input.Color)
	tag.IsCategory = input.IsCategory
	tag.Targets = normalizeTargets(input.Targets)
	if err := s.db.WithContext(ctx).Save(&tag).Error; err != nil {
		return nil, err
	}

	count, err := s.postUsageCount(ctx, tag.ID)
	if err != nil {
		return nil, err
	}
	tag.PostCount = count

	s.invalidate(ctx)
	return &tag, nil
}

// Delete removes a tag if it is not associated with posts.
func (s *TagService) Delete(ctx context.Context, id uint) error {
	var tag db.Tag
	if err := s.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTagNotFound
		}
		return err
	}

	count, err := s.postUsageCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrTagInUse
	}

	if err := s.db.WithContext(ctx).Unscoped().Delete(&tag).Error; err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// Reorder updates tag sort order based on the provided ids sequence.
func (s *TagService) Reorder(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			return ErrTagOrder
		}
		if _, ok := seen[id]; ok {
			return ErrTagOrder
		}
		seen[id] = struct{}{}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for idx, id := range ids {
			result := tx.Model(&db.Tag{}).Where("id = ?", id).Update("sort_order", idx)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrTagNotFound
			}
		}
		return nil
	})
}

func (s *TagService) invalidate(ctx context.Context) {
	if s.categories == nil {
		return
	}
	if err := s.categories.Invalidate(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("invalidate category snapshot")
	}
}

func (s *TagService) postUsageCount(ctx context.Context, id uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&db.Post{}).
		Joins("JOIN post_tags ON posts.id = post_tags.post_id").
		Where("post_tags.tag_id = ?", id).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *TagService) nextSortOrder(ctx context.Context) (int, error) {
	var maxSort int
	if err := s.db.WithContext(ctx).Model(&db.Tag{}).Select("COALESCE(MAX(sort_order), -1)").Scan(&maxSort).Error; err != nil {
		return 0, err
	}
	return maxSort + 1, nil
}

func normalizeColor(color string) string {
	return strings.ToLower(strings.TrimSpace(color))
}

func normalizeTargets(targets []string) string {
	seen := make(map[string]struct{}, len(targets))
	cleaned := make([]string, 0, len(targets))
	for _, target := range targets {
		trimmed := strings.TrimSpace(target)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	return strings.Join(cleaned, ",")
}
