package service

import "time"

// FeedImage 是附加在条目上的代表图。
type FeedImage struct {
	ID     uint   `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Hash   string `json:"hash"`
	NSFW   bool   `json:"nsfw"`
}

// FeedItem 是分类下的一条帖子，总是带有一张图片。
type FeedItem struct {
	PostID        uint      `json:"id"`
	TagID         uint      `json:"tagId"`
	UserID        uint      `json:"userId"`
	Title         string    `json:"title"`
	NSFW          bool      `json:"nsfw"`
	PublishedAt   time.Time `json:"publishedAt"`
	ReactionCount int64     `json:"reactionCount"`
	CommentCount  int64     `json:"commentCount"`
	RankIndex     int       `json:"rankIndex"`
	Image         FeedImage `json:"image"`
}

func newFeedItem(row RankedPostRow, image ImageRow) FeedItem {
	return FeedItem{
		PostID:        row.PostID,
		TagID:         row.TagID,
		UserID:        row.UserID,
		Title:         row.Title,
		NSFW:          row.NSFW,
		PublishedAt:   row.PublishedAt,
		ReactionCount: row.ReactionCount,
		CommentCount:  row.CommentCount,
		RankIndex:     row.RankIndex,
		Image: FeedImage{
			ID:     image.ID,
			URL:    image.URL,
			Width:  image.Width,
			Height: image.Height,
			Hash:   image.Hash,
			NSFW:   image.NSFW,
		},
	}
}

// MergeUnique pairs each ranked row, in order, with the first image of its post
// that no earlier row has claimed. Rows left without an image are dropped, so an
// image id appears at most once across all categories. The inputs are not modified.
func MergeUnique(rows []RankedPostRow, images []ImageRow) map[uint][]FeedItem {
	byPost := make(map[uint][]ImageRow)
	for _, image := range images {
		byPost[image.PostID] = append(byPost[image.PostID], image)
	}

	consumed := make(map[uint]struct{})
	buckets := make(map[uint][]FeedItem)
	for _, row := range rows {
		for _, image := range byPost[row.PostID] {
			if _, used := consumed[image.ID]; used {
				continue
			}
			consumed[image.ID] = struct{}{}
			buckets[row.TagID] = append(buckets[row.TagID], newFeedItem(row, image))
			break
		}
	}
	return buckets
}
