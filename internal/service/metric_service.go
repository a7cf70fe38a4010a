package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tagfeed/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionType 表示帖子反应类型。
type ReactionType string

const (
	ReactionLike  ReactionType = "Like"
	ReactionHeart ReactionType = "Heart"
	ReactionLaugh ReactionType = "Laugh"
	ReactionCry   ReactionType = "Cry"
)

var (
	ErrReactionInvalid  = errors.New("reaction type is invalid")
	ErrCommentEmpty     = errors.New("comment content is required")
	ErrPostNotPublished = errors.New("post is not published")
)

// ParseReaction 解析反应类型。
func ParseReaction(raw string) (ReactionType, error) {
	trimmed := strings.TrimSpace(raw)
	for _, reaction := range []ReactionType{ReactionLike, ReactionHeart, ReactionLaugh, ReactionCry} {
		if strings.EqualFold(string(reaction), trimmed) {
			return reaction, nil
		}
	}
	return "", ErrReactionInvalid
}

// MetricService 负责记录互动并维护按时间窗口汇总的 post_metrics。
type MetricService struct {
	db *gorm.DB
}

// NewMetricService creates a MetricService instance.
func NewMetricService(gdb *gorm.DB) *MetricService {
	return &MetricService{db: gdb}
}

// React 记录一次反应，同一用户对同一帖子同一类型只计一次，随后刷新汇总。
func (s *MetricService) React(ctx context.Context, postID, userID uint, reaction ReactionType, now time.Time) error {
	if _, err := ParseReaction(string(reaction)); err != nil {
		return err
	}
	if err := s.ensurePublished(ctx, postID); err != nil {
		return err
	}

	record := db.PostReaction{
		PostID:    postID,
		UserID:    userID,
		Reaction:  string(reaction),
		CreatedAt: now.UTC(),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}, {Name: "reaction"}},
		DoNothing: true,
	}).Create(&record).Error; err != nil {
		return err
	}

	return s.Refresh(ctx, postID, now)
}

// Unreact 撤销一次反应。
func (s *MetricService) Unreact(ctx context.Context, postID, userID uint, reaction ReactionType, now time.Time) error {
	if err := s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ? AND reaction = ?", postID, userID, string(reaction)).
		Delete(&db.PostReaction{}).Error; err != nil {
		return err
	}
	return s.Refresh(ctx, postID, now)
}

// Comment 添加评论并刷新汇总。
func (s *MetricService) Comment(ctx context.Context, postID, userID uint, content string, now time.Time) (*db.Comment, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrCommentEmpty
	}
	if err := s.ensurePublished(ctx, postID); err != nil {
		return nil, err
	}

	comment := db.Comment{PostID: postID, UserID: userID, Content: trimmed}
	comment.CreatedAt = now.UTC()
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, err
	}

	if err := s.Refresh(ctx, postID, now); err != nil {
		return nil, err
	}
	return &comment, nil
}

// Refresh 重新计算帖子在每个时间窗口内的反应与评论数量。
func (s *MetricService) Refresh(ctx context.Context, postID uint, now time.Time) error {
	now = now.UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, tf := range Timeframes {
			metric := db.PostMetric{PostID: postID, Timeframe: string(tf)}

			var counts []struct {
				Reaction string
				Total    int64
			}
			reactions := tx.Model(&db.PostReaction{}).
				Select("reaction, COUNT(*) AS total").
				Where("post_id = ?", postID)
			if since, ok := tf.Since(now); ok {
				reactions = reactions.Where("created_at >= ?", since)
			}
			if err := reactions.Group("reaction").Scan(&counts).Error; err != nil {
				return err
			}
			for _, count := range counts {
				switch ReactionType(count.Reaction) {
				case ReactionLike:
					metric.LikeCount = count.Total
				case ReactionHeart:
					metric.HeartCount = count.Total
				case ReactionLaugh:
					metric.LaughCount = count.Total
				case ReactionCry:
					metric.CryCount = count.Total
				}
			}

			comments := tx.Model(&db.Comment{}).Where("post_id = ?", postID)
			if since, ok := tf.Since(now); ok {
				comments = comments.Where("created_at >= ?", since)
			}
			if err := comments.Count(&metric.CommentCount).Error; err != nil {
				return err
			}

			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "post_id"}, {Name: "timeframe"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"like_count", "heart_count", "laugh_count", "cry_count", "comment_count", "updated_at",
				}),
			}).Create(&metric).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// RefreshExpired 重新计算仍带有非零计数的有限窗口汇总，使已移出窗口的互动不再计入。
// 计数为零的窗口只会因新的互动而变化，而新的互动会立即触发 Refresh。
func (s *MetricService) RefreshExpired(ctx context.Context, now time.Time) (int, error) {
	var postIDs []uint
	if err := s.db.WithContext(ctx).Model(&db.PostMetric{}).
		Where("timeframe <> ?", string(TimeframeAllTime)).
		Where("like_count + heart_count + laugh_count + cry_count + comment_count > 0").
		Distinct("post_id").
		Pluck("post_id", &postIDs).Error; err != nil {
		return 0, fmt.Errorf("list windowed metrics: %w", err)
	}

	refreshed := 0
	for _, postID := range postIDs {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if err := s.Refresh(ctx, postID, now); err != nil {
			return refreshed, fmt.Errorf("refresh post %d: %w", postID, err)
		}
		refreshed++
	}
	return refreshed, nil
}

// RunExpiryLoop 按 interval 周期调用 RefreshExpired，直到 ctx 结束。
func (s *MetricService) RunExpiryLoop(ctx context.Context, interval time.Duration, now func() time.Time) {
	log := zerolog.Ctx(ctx)
	if interval <= 0 {
		log.Info().Msg("metric expiry loop disabled")
		return
	}
	if now == nil {
		now = time.Now
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshed, err := s.RefreshExpired(ctx, now())
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Msg("refresh expired metrics failed")
				continue
			}
			log.Debug().Int("posts", refreshed).Msg("expired metrics refreshed")
		}
	}
}

// Metric 返回帖子在指定窗口的汇总，不存在时返回零值。
func (s *MetricService) Metric(ctx context.Context, postID uint, tf Timeframe) (db.PostMetric, error) {
	metric := db.PostMetric{PostID: postID, Timeframe: string(tf)}
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND timeframe = ?", postID, string(tf)).
		First(&metric).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return metric, nil
	}
	return metric, err
}

func (s *MetricService) ensurePublished(ctx context.Context, postID uint) error {
	var post db.Post
	if err := s.db.WithContext(ctx).First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	if !post.IsPublished() {
		return ErrPostNotPublished
	}
	return nil
}
