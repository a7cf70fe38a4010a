package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tagfeed/internal/db"
)

func newTestPostService(t *testing.T) *PostService {
	t.Helper()
	svc := NewPostService(setupServiceTestDB(t))
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestPostServiceCreateRequiresTitle(t *testing.T) {
	svc := newTestPostService(t)

	if _, err := svc.Create(context.Background(), PostInput{Title: "   ", UserID: 1}); !errors.Is(err, ErrPostTitleRequired) {
		t.Fatalf("expected ErrPostTitleRequired, got %v", err)
	}
}

func TestPostServiceCreateRejectsUnknownTags(t *testing.T) {
	svc := newTestPostService(t)
	user := seedUser(t, svc.db, "author")

	_, err := svc.Create(context.Background(), PostInput{Title: "tagged", UserID: user.ID, TagIDs: []uint{42}})
	if !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}

	var count int64
	if err := svc.db.Model(&db.Post{}).Count(&count).Error; err != nil {
		t.Fatalf("count posts: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected transaction rollback, found %d posts", count)
	}
}

func TestPostServiceCreateAndPublish(t *testing.T) {
	svc := newTestPostService(t)
	user := seedUser(t, svc.db, "author")
	tag := seedCategory(t, svc.db, "风景", "green")

	post, err := svc.Create(context.Background(), PostInput{
		Title:  " 山间 ",
		Detail: "**清晨**",
		UserID: user.ID,
		TagIDs: []uint{tag.ID, tag.ID},
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if post.Title != "山间" || len(post.Tags) != 1 {
		t.Fatalf("unexpected post after create: %+v", post)
	}
	if post.IsPublished() {
		t.Fatalf("new posts should start as drafts")
	}

	local := time.Date(2025, 5, 30, 8, 0, 0, 0, time.FixedZone("CST", 8*3600))
	published, err := svc.Publish(context.Background(), post.ID, user.ID, &local)
	if err != nil {
		t.Fatalf("publish post: %v", err)
	}
	if published.PublishedAt == nil || !published.PublishedAt.Equal(local) {
		t.Fatalf("expected published_at %v, got %v", local, published.PublishedAt)
	}

	again, err := svc.Publish(context.Background(), post.ID, user.ID, nil)
	if err != nil {
		t.Fatalf("republish post: %v", err)
	}
	if !again.PublishedAt.Equal(fixedNow) {
		t.Fatalf("expected clock time %v, got %v", fixedNow, again.PublishedAt)
	}
}

func TestPostServiceOwnerChecks(t *testing.T) {
	svc := newTestPostService(t)
	owner := seedUser(t, svc.db, "owner")
	other := seedUser(t, svc.db, "other")
	post := seedPost(t, svc.db, owner.ID, "mine", fixedNow.Add(-time.Hour))

	if _, err := svc.Update(context.Background(), post.ID, PostInput{Title: "stolen", UserID: other.ID}); !errors.Is(err, ErrPostForbidden) {
		t.Fatalf("expected ErrPostForbidden on update, got %v", err)
	}
	if _, err := svc.Publish(context.Background(), post.ID, other.ID, nil); !errors.Is(err, ErrPostForbidden) {
		t.Fatalf("expected ErrPostForbidden on publish, got %v", err)
	}
	if err := svc.Delete(context.Background(), post.ID, other.ID); !errors.Is(err, ErrPostForbidden) {
		t.Fatalf("expected ErrPostForbidden on delete, got %v", err)
	}
	if err := svc.Delete(context.Background(), post.ID, owner.ID); err != nil {
		t.Fatalf("delete post: %v", err)
	}
	if _, err := svc.Get(context.Background(), post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound after delete, got %v", err)
	}
}

func TestPostServiceListCursorIsStable(t *testing.T) {
	svc := newTestPostService(t)
	user := seedUser(t, svc.db, "author")
	tag := seedCategory(t, svc.db, "A", "red")

	var posts []db.Post
	for i := 0; i < 5; i++ {
		posts = append(posts, seedPost(t, svc.db, user.ID, "post", fixedNow.Add(-time.Duration(i+1)*time.Hour), tag))
	}
	draft := db.Post{UserID: user.ID, Title: "draft"}
	if err := svc.db.Create(&draft).Error; err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	first, err := svc.ListCursor(context.Background(), PostCursorQuery{Limit: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Items) != 2 || first.Items[0].ID != posts[4].ID || first.NextCursor == nil {
		t.Fatalf("unexpected first page: %+v", first)
	}

	seedPost(t, svc.db, user.ID, "late arrival", fixedNow.Add(-time.Minute), tag)

	second, err := svc.ListCursor(context.Background(), PostCursorQuery{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Items) != 2 || second.Items[0].ID != posts[2].ID || second.Items[1].ID != posts[1].ID {
		t.Fatalf("unexpected second page: %+v", second.Items)
	}

	third, err := svc.ListCursor(context.Background(), PostCursorQuery{Limit: 2, Cursor: second.NextCursor, TagID: uintPtr(tag.ID)})
	if err != nil {
		t.Fatalf("third page: %v", err)
	}
	if len(third.Items) != 1 || third.Items[0].ID != posts[0].ID || third.NextCursor != nil {
		t.Fatalf("unexpected third page: %+v", third)
	}
}
