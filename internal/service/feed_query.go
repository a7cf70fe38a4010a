package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tagfeed/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// rankOverhead 为后续因缺少可用图片而丢弃的行预留 25% 余量。
const rankOverhead = 1.25

// PostFilters 描述排名查询的过滤条件。
type PostFilters struct {
	Visibility      VisibilityFilters
	ExcludedTagIDs  []uint
	ExcludedUserIDs []uint
	UserID          *uint
	ModelID         *uint
	ModelVersionID  *uint
}

// RankedPostRow 是排名查询返回的一行：某个分类下的一篇帖子及其名次。
type RankedPostRow struct {
	TagID          uint
	PostID         uint
	UserID         uint
	Title          string
	NSFW           bool `gorm:"column:nsfw"`
	ModelVersionID *uint
	PublishedAt    time.Time
	ReactionCount  int64
	CommentCount   int64
	RankIndex      int
}

// ImageRow 是图片查询返回的一行。
type ImageRow struct {
	ID           uint
	PostID       uint
	URL          string
	NSFW         bool `gorm:"column:nsfw"`
	Width        int
	Height       int
	Hash         string
	Meta         datatypes.JSON
	DisplayIndex int
	ImageRank    int
}

// predicates collects AND-ed SQL fragments with their bind arguments.
// Fragments are always constants chosen by the caller; values only travel as args.
type predicates struct {
	clauses []string
	args    []interface{}
}

func (p *predicates) and(fragment string, args ...interface{}) {
	p.clauses = append(p.clauses, fragment)
	p.args = append(p.args, args...)
}

func (p *predicates) sql() string {
	if len(p.clauses) == 0 {
		return "1 = 1"
	}
	return strings.Join(p.clauses, " AND ")
}

const missingMetricsLast = "CASE WHEN pm.post_id IS NULL THEN 1 ELSE 0 END"

// postOrderExprs maps each sort key to its ranking expression.
var postOrderExprs = map[PostSort]string{
	PostSortNewest: "p.published_at DESC, p.id DESC",
	PostSortMostReactions: missingMetricsLast +
		", (pm.like_count + pm.heart_count + pm.laugh_count + pm.cry_count) DESC, p.published_at DESC, p.id DESC",
	PostSortMostComments: missingMetricsLast + ", pm.comment_count DESC, p.published_at DESC, p.id DESC",
}

func postOrderExpr(sort PostSort) string {
	if expr, ok := postOrderExprs[sort]; ok {
		return expr
	}
	return postOrderExprs[PostSortNewest]
}

// perCategoryWindow 返回每个分类需要取回的行数。
func perCategoryWindow(limit int) int {
	return int(math.Ceil(float64(limit) * rankOverhead))
}

func postPredicates(categoryIDs []uint, filters PostFilters, period Timeframe, now time.Time) *predicates {
	where := &predicates{}
	where.and("pt.tag_id IN ?", categoryIDs)
	where.and("p.deleted_at IS NULL")
	where.and("p.published_at IS NOT NULL")
	where.and("p.published_at <= ?", now)

	if since, ok := period.Since(now); ok {
		where.and("p.published_at >= ?", since)
	}
	if filters.Visibility.SafeOnly {
		where.and("p.nsfw = ?", false)
	}
	if len(filters.ExcludedTagIDs) > 0 {
		where.and("NOT EXISTS (SELECT 1 FROM post_tags xt WHERE xt.post_id = p.id AND xt.tag_id IN ?)", filters.ExcludedTagIDs)
	}
	if excluded := mergeIDs(filters.ExcludedUserIDs, filters.Visibility.BlockedUserIDs); len(excluded) > 0 {
		where.and("p.user_id NOT IN ?", excluded)
	}
	if filters.UserID != nil {
		where.and("p.user_id = ?", *filters.UserID)
	}
	if filters.ModelID != nil {
		where.and("p.model_id = ?", *filters.ModelID)
	}
	if filters.ModelVersionID != nil {
		where.and("p.model_version_id = ?", *filters.ModelVersionID)
	}
	return where
}

func imagePredicates(postIDs []uint, visibility VisibilityFilters) *predicates {
	where := &predicates{}
	where.and("i.post_id IN ?", postIDs)
	where.and("i.deleted_at IS NULL")
	where.and("(i.moderation_status = ? OR (i.moderation_status = ? AND i.user_id = ?))",
		db.ModerationApproved, db.ModerationPending, visibility.ViewerID)
	if visibility.SafeOnly {
		where.and("i.nsfw = ?", false)
	}
	return where
}

// selectRankedPosts 对每个分类按排序键编号并截取窗口，一次查询返回全部分类的结果。
// 结果按名次升序，同名次按分类在 categories 中的顺序排列。
func selectRankedPosts(ctx context.Context, gdb *gorm.DB, categories []Category, filters PostFilters, sort PostSort, period Timeframe, perCategoryLimit int, now time.Time) ([]RankedPostRow, error) {
	if len(categories) == 0 || perCategoryLimit <= 0 {
		return []RankedPostRow{}, nil
	}

	categoryIDs := make([]uint, 0, len(categories))
	for _, category := range categories {
		categoryIDs = append(categoryIDs, category.ID)
	}

	where := postPredicates(categoryIDs, filters, period, now)
	query := fmt.Sprintf(`SELECT ranked.* FROM (
	SELECT pt.tag_id AS tag_id,
		p.id AS post_id,
		p.user_id AS user_id,
		p.title AS title,
		p.nsfw AS nsfw,
		p.model_version_id AS model_version_id,
		p.published_at AS published_at,
		COALESCE(pm.like_count, 0) + COALESCE(pm.heart_count, 0) + COALESCE(pm.laugh_count, 0) + COALESCE(pm.cry_count, 0) AS reaction_count,
		COALESCE(pm.comment_count, 0) AS comment_count,
		ROW_NUMBER() OVER (PARTITION BY pt.tag_id ORDER BY %s) AS rank_index
	FROM post_tags pt
	JOIN posts p ON p.id = pt.post_id
	LEFT JOIN post_metrics pm ON pm.post_id = p.id AND pm.timeframe = ?
	WHERE %s
) ranked
WHERE ranked.rank_index <= ?
ORDER BY ranked.rank_index ASC, ranked.tag_id ASC`, postOrderExpr(sort), where.sql())

	args := make([]interface{}, 0, len(where.args)+2)
	args = append(args, string(period))
	args = append(args, where.args...)
	args = append(args, perCategoryWindow(perCategoryLimit))

	var rows []RankedPostRow
	if err := gdb.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("select ranked posts: %w", err)
	}

	orderRankedRows(rows, categories)
	return rows, nil
}

func orderRankedRows(rows []RankedPostRow, categories []Category) {
	position := make(map[uint]int, len(categories))
	for idx, category := range categories {
		position[category.ID] = idx
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].RankIndex != rows[j].RankIndex {
			return rows[i].RankIndex < rows[j].RankIndex
		}
		return position[rows[i].TagID] < position[rows[j].TagID]
	})
}

// attachImages 取回每篇帖子按展示顺序排列的前 perPostLimit 张可见图片。
func attachImages(ctx context.Context, gdb *gorm.DB, postIDs []uint, visibility VisibilityFilters, perPostLimit int) ([]ImageRow, error) {
	if len(postIDs) == 0 {
		return []ImageRow{}, nil
	}
	if perPostLimit <= 0 {
		perPostLimit = 1
	}

	where := imagePredicates(postIDs, visibility)
	query := fmt.Sprintf(`SELECT ranked.* FROM (
	SELECT i.id AS id,
		i.post_id AS post_id,
		i.url AS url,
		i.nsfw AS nsfw,
		i.width AS width,
		i.height AS height,
		i.hash AS hash,
		COALESCE(i.meta, '{}') AS meta,
		i.display_index AS display_index,
		ROW_NUMBER() OVER (PARTITION BY i.post_id ORDER BY i.display_index ASC, i.id ASC) AS image_rank
	FROM images i
	WHERE %s
) ranked
WHERE ranked.image_rank <= ?
ORDER BY ranked.post_id ASC, ranked.image_rank ASC`, where.sql())

	args := append(where.args, perPostLimit)

	var rows []ImageRow
	if err := gdb.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("attach images: %w", err)
	}
	return rows, nil
}

func mergeIDs(groups ...[]uint) []uint {
	seen := make(map[uint]struct{})
	merged := make([]uint, 0)
	for _, group := range groups {
		for _, id := range group {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	return merged
}
