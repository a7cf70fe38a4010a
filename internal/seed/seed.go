package seed

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"time"

	"github.com/rs/zerolog"
	"github.com/tagfeed/internal/db"
	"github.com/tagfeed/internal/service"
	"gorm.io/gorm"
)

// Summary 记录一次演示数据生成的数量。
type Summary struct {
	Users      int
	Categories int
	Posts      int
	Images     int
	Skipped    bool
}

type demoUser struct {
	name     string
	password string
}

type demoCategory struct {
	name  string
	color string
}

var (
	demoUsers = []demoUser{
		{"admin", "admin123"},
		{"alice", "alice123"},
		{"bob", "bob123"},
	}
	demoCategories = []demoCategory{
		{"人像", "red"},
		{"动物", "orange"},
		{"风景", "green"},
		{"建筑", "blue"},
		{"抽象", "violet"},
	}
	demoReactions = []service.ReactionType{
		service.ReactionLike,
		service.ReactionHeart,
		service.ReactionLaugh,
		service.ReactionCry,
	}
)

// Options 控制生成规模。
type Options struct {
	PostsPerCategory int
	ImagesPerPost    int
	UploadDir        string
	UploadURLPath    string
	Now              time.Time
}

// Run 生成演示用户、分类、帖子、图片与互动数据。已有帖子时跳过。
func Run(ctx context.Context, gdb *gorm.DB, opts Options) (Summary, error) {
	log := zerolog.Ctx(ctx)
	if opts.PostsPerCategory <= 0 {
		opts.PostsPerCategory = 4
	}
	if opts.ImagesPerPost <= 0 {
		opts.ImagesPerPost = 2
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	now := opts.Now.UTC()

	var existing int64
	if err := gdb.WithContext(ctx).Model(&db.Post{}).Count(&existing).Error; err != nil {
		return Summary{}, err
	}
	if existing > 0 {
		log.Info().Int64("posts", existing).Msg("posts already present, skipping seed")
		return Summary{Skipped: true}, nil
	}

	summary := Summary{}
	users := service.NewUserService(gdb)
	userIDs := make([]uint, 0, len(demoUsers))
	for _, u := range demoUsers {
		if err := db.EnsureUser(gdb, u.name, u.password); err != nil {
			return summary, fmt.Errorf("seed user %s: %w", u.name, err)
		}
		user, err := users.FindByUsername(ctx, u.name)
		if err != nil {
			return summary, err
		}
		userIDs = append(userIDs, user.ID)
		summary.Users++
	}

	categories := service.NewCategoryService(gdb, service.NewDBCache(gdb))
	tags := service.NewTagService(gdb, categories)
	tagIDs := make([]uint, 0, len(demoCategories))
	for _, category := range demoCategories {
		tag, err := tags.Create(ctx, service.TagInput{
			Name:       category.name,
			Color:      category.color,
			IsCategory: true,
			Targets:    []string{db.TagTargetPost},
		})
		if err != nil {
			return summary, fmt.Errorf("seed category %s: %w", category.name, err)
		}
		tagIDs = append(tagIDs, tag.ID)
		summary.Categories++
	}

	posts := service.NewPostService(gdb)
	images := service.NewImageService(gdb, opts.UploadDir, opts.UploadURLPath)
	metrics := service.NewMetricService(gdb)

	for ci, tagID := range tagIDs {
		for pi := 0; pi < opts.PostsPerCategory; pi++ {
			owner := userIDs[(ci+pi)%len(userIDs)]
			postTags := []uint{tagID}
			// 每个分类的第一篇帖子同时归入下一个分类，用于演示跨分类去重。
			if pi == 0 {
				postTags = append(postTags, tagIDs[(ci+1)%len(tagIDs)])
			}

			post, err := posts.Create(ctx, service.PostInput{
				Title:  fmt.Sprintf("%s #%d", demoCategories[ci].name, pi+1),
				Detail: fmt.Sprintf("**%s** 示例作品，第 %d 张。", demoCategories[ci].name, pi+1),
				NSFW:   pi == opts.PostsPerCategory-1 && ci%2 == 1,
				TagIDs: postTags,
				UserID: owner,
			})
			if err != nil {
				return summary, fmt.Errorf("seed post: %w", err)
			}

			publishedAt := now.Add(-time.Duration(ci*opts.PostsPerCategory+pi+1) * 3 * time.Hour)
			if _, err := posts.Publish(ctx, post.ID, owner, &publishedAt); err != nil {
				return summary, fmt.Errorf("publish post %d: %w", post.ID, err)
			}
			summary.Posts++

			for ii := 0; ii < opts.ImagesPerPost; ii++ {
				body, err := gradientPNG(ci, pi, ii)
				if err != nil {
					return summary, err
				}
				if _, err := images.Ingest(ctx, service.ImageUpload{
					PostID:   post.ID,
					UserID:   owner,
					Filename: fmt.Sprintf("seed-%d-%d-%d.png", ci, pi, ii),
					Meta:     map[string]interface{}{"seed": true},
					Body:     bytes.NewReader(body),
				}); err != nil {
					return summary, fmt.Errorf("seed image: %w", err)
				}
				summary.Images++
			}

			for ui, userID := range userIDs {
				if (pi+ui)%2 == 0 {
					continue
				}
				reaction := demoReactions[(ci+pi+ui)%len(demoReactions)]
				if err := metrics.React(ctx, post.ID, userID, reaction, publishedAt.Add(time.Hour)); err != nil {
					return summary, fmt.Errorf("seed reaction: %w", err)
				}
			}
			for k := 0; k < (ci+pi)%3; k++ {
				if _, err := metrics.Comment(ctx, post.ID, userIDs[k%len(userIDs)], "好看！", publishedAt.Add(2*time.Hour)); err != nil {
					return summary, fmt.Errorf("seed comment: %w", err)
				}
			}
			if err := metrics.Refresh(ctx, post.ID, now); err != nil {
				return summary, fmt.Errorf("refresh metrics: %w", err)
			}
		}
	}

	log.Info().
		Int("users", summary.Users).
		Int("categories", summary.Categories).
		Int("posts", summary.Posts).
		Int("images", summary.Images).
		Msg("seed data generated")
	return summary, nil
}

func gradientPNG(category, post, index int) ([]byte, error) {
	const width, height = 48, 32
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := uint8(category * 50)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{
				R: base + uint8(x*4),
				G: uint8(post*40 + y*3),
				B: uint8(index*90 + (x+y)*2),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
