package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	defaultCategoryLimit = 10
	maxCategoryLimit     = 30
	defaultPostLimit     = 10
	maxPostLimit         = 30
)

// FeedInput 描述分类信息流请求。
type FeedInput struct {
	Cursor          *uint
	Limit           int
	PostLimit       int
	Period          Timeframe
	Sort            PostSort
	BrowsingMode    BrowsingMode
	ExcludedTagIDs  []uint
	ExcludedUserIDs []uint
	Username        string
	ModelID         *uint
	ModelVersionID  *uint
	UserID          *uint
	ViewerID        uint
}

// CategoryFeedBucket 是一个分类及其帖子。
type CategoryFeedBucket struct {
	Category
	Items []FeedItem `json:"items"`
}

// CategoryFeed 是分类信息流的一页。
type CategoryFeed struct {
	Items      []CategoryFeedBucket `json:"items"`
	NextCursor *uint                `json:"nextCursor"`
}

// FeedService assembles the per-category ranked feed.
type FeedService struct {
	db            *gorm.DB
	categories    *CategoryService
	users         *UserService
	imagesPerPost int
	now           func() time.Time
}

// NewFeedService creates a FeedService instance.
func NewFeedService(gdb *gorm.DB, categories *CategoryService, users *UserService) *FeedService {
	return &FeedService{
		db:            gdb,
		categories:    categories,
		users:         users,
		imagesPerPost: 1,
		now:           time.Now,
	}
}

// WithImagesPerPost 调整每篇帖子候选图片的数量。
func (s *FeedService) WithImagesPerPost(n int) *FeedService {
	if n <= 0 {
		return s
	}
	s.imagesPerPost = n
	return s
}

// WithClock 允许在测试中固定当前时间。
func (s *FeedService) WithClock(now func() time.Time) *FeedService {
	if now != nil {
		s.now = now
	}
	return s
}

// GetPostsByCategory 依次执行 分类解析 → 排名选择 → 图片附加 → 去重合并 → 组装。
// 指定的用户名不存在时整个请求失败并返回 ErrUserNotFound。
func (s *FeedService) GetPostsByCategory(ctx context.Context, input FeedInput) (*CategoryFeed, error) {
	input = normalizeFeedInput(input)
	log := zerolog.Ctx(ctx)

	var (
		page  CategoryPage
		owner = input.UserID
	)

	group, groupCtx := errgroup.WithContext(ctx)
	if input.Username != "" {
		group.Go(func() error {
			user, err := s.users.FindByUsername(groupCtx, input.Username)
			if err != nil {
				return err
			}
			id := user.ID
			owner = &id
			return nil
		})
	}
	group.Go(func() error {
		resolved, err := s.categories.Resolve(groupCtx, CategoryQuery{
			ExcludeIDs: input.ExcludedTagIDs,
			Limit:      input.Limit,
			Cursor:     input.Cursor,
		})
		if err != nil {
			return err
		}
		page = resolved
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	feed := &CategoryFeed{Items: []CategoryFeedBucket{}, NextCursor: page.NextCursor}
	if len(page.Items) == 0 {
		return feed, nil
	}

	visibility, err := s.users.BuildVisibility(ctx, input.ViewerID, input.BrowsingMode)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := selectRankedPosts(ctx, s.db, page.Items, PostFilters{
		Visibility:      visibility,
		ExcludedTagIDs:  input.ExcludedTagIDs,
		ExcludedUserIDs: input.ExcludedUserIDs,
		UserID:          owner,
		ModelID:         input.ModelID,
		ModelVersionID:  input.ModelVersionID,
	}, input.Sort, input.Period, input.PostLimit, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	images, err := attachImages(ctx, s.db, distinctPostIDs(rows), visibility, s.imagesPerPost)
	if err != nil {
		return nil, err
	}

	buckets := MergeUnique(rows, images)
	for _, category := range page.Items {
		items := buckets[category.ID]
		if len(items) == 0 {
			continue
		}
		if len(items) > input.PostLimit {
			items = items[:input.PostLimit]
		}
		feed.Items = append(feed.Items, CategoryFeedBucket{Category: category, Items: items})
	}

	log.Debug().
		Int("categories", len(page.Items)).
		Int("ranked_rows", len(rows)).
		Int("images", len(images)).
		Int("buckets", len(feed.Items)).
		Msg("assembled category feed")

	return feed, nil
}

func normalizeFeedInput(input FeedInput) FeedInput {
	input.Limit = clampLimit(input.Limit, defaultCategoryLimit, maxCategoryLimit)
	input.PostLimit = clampLimit(input.PostLimit, defaultPostLimit, maxPostLimit)
	if input.Period == "" {
		input.Period = TimeframeAllTime
	}
	if input.Sort == "" {
		input.Sort = PostSortNewest
	}
	if input.BrowsingMode == "" {
		input.BrowsingMode = BrowsingModeSFW
	}
	return input
}

func clampLimit(value, fallback, max int) int {
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func distinctPostIDs(rows []RankedPostRow) []uint {
	seen := make(map[uint]struct{}, len(rows))
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.PostID]; ok {
			continue
		}
		seen[row.PostID] = struct{}{}
		ids = append(ids, row.PostID)
	}
	return ids
}
