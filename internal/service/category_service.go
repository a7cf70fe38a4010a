package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/tagfeed/internal/db"
	"gorm.io/gorm"
)

// CategoryCacheKey 是帖子分类快照在缓存中的键。
const CategoryCacheKey = "system:categories:post"

// Category 是分类标签的快照条目。
type Category struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// CategoryQuery 描述分类分页参数。
type CategoryQuery struct {
	ExcludeIDs []uint
	Limit      int
	Cursor     *uint
}

// CategoryPage 是一页分类及下一页游标。
type CategoryPage struct {
	Items      []Category
	NextCursor *uint
}

// CategoryService resolves the ordered category list through a cache.
type CategoryService struct {
	db    *gorm.DB
	cache Cache
}

// NewCategoryService creates a CategoryService instance.
func NewCategoryService(gdb *gorm.DB, cache Cache) *CategoryService {
	return &CategoryService{db: gdb, cache: cache}
}

// Snapshot 返回完整的分类快照，缓存未命中时从标签表重新计算并回写。
func (s *CategoryService) Snapshot(ctx context.Context) ([]Category, error) {
	log := zerolog.Ctx(ctx)

	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, CategoryCacheKey)
		if err != nil {
			log.Warn().Err(err).Msg("category cache read failed")
		}
		if ok {
			var cached []Category
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
			log.Warn().Str("key", CategoryCacheKey).Msg("discarding undecodable category snapshot")
		}
	}

	categories, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(categories)
		if err == nil {
			err = s.cache.Set(ctx, CategoryCacheKey, string(payload))
		}
		if err != nil {
			log.Warn().Err(err).Msg("category cache write failed")
		}
	}

	return categories, nil
}

// Resolve 返回过滤、分页后的分类列表。
func (s *CategoryService) Resolve(ctx context.Context, query CategoryQuery) (CategoryPage, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return CategoryPage{}, err
	}
	return paginateCategories(snapshot, query), nil
}

// Invalidate 删除缓存中的分类快照。
func (s *CategoryService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, CategoryCacheKey)
}

func (s *CategoryService) load(ctx context.Context) ([]Category, error) {
	var tags []db.Tag
	if err := s.db.WithContext(ctx).
		Where("is_category = ?", true).
		Order("id asc").
		Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("load category tags: %w", err)
	}

	categories := make([]Category, 0, len(tags))
	for _, tag := range tags {
		if !tag.HasTarget(db.TagTargetPost) {
			continue
		}
		categories = append(categories, Category{
			ID:       tag.ID,
			Name:     tag.Name,
			Priority: ColorPriority(tag.Color),
		})
	}

	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Priority < categories[j].Priority
	})

	return categories, nil
}

// paginateCategories applies exclusion, then cursor, then the limit+1 window.
// A cursor that is not present restarts from the first category.
func paginateCategories(snapshot []Category, query CategoryQuery) CategoryPage {
	excluded := make(map[uint]struct{}, len(query.ExcludeIDs))
	for _, id := range query.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	filtered := make([]Category, 0, len(snapshot))
	for _, category := range snapshot {
		if _, skip := excluded[category.ID]; skip {
			continue
		}
		filtered = append(filtered, category)
	}

	start := 0
	if query.Cursor != nil {
		position := -1
		for idx, category := range filtered {
			if category.ID == *query.Cursor {
				position = idx
				break
			}
		}
		start = position + 1
	}

	limit := query.Limit
	if limit <= 0 {
		limit = len(filtered)
	}

	end := start + limit + 1
	if end > len(filtered) {
		end = len(filtered)
	}
	window := filtered[start:end]

	page := CategoryPage{}
	if len(window) > limit {
		window = window[:limit]
		next := window[len(window)-1].ID
		page.NextCursor = &next
	}
	page.Items = append([]Category(nil), window...)
	return page
}
