package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tagfeed/internal/db"
)

func TestTagServiceCreateAssignsNextSortOrder(t *testing.T) {
	gdb := setupServiceTestDB(t)

	if err := gdb.Create(&db.Tag{Name: "已有标签", SortOrder: 5}).Error; err != nil {
		t.Fatalf("failed to seed tag: %v", err)
	}

	svc := NewTagService(gdb, nil)
	tag, err := svc.Create(context.Background(), TagInput{Name: "新标签", Color: " Blue ", Targets: []string{"Post", "post", ""}})
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}

	if tag.SortOrder != 6 {
		t.Fatalf("expected sort_order=6, got %d", tag.SortOrder)
	}
	if tag.Color != "blue" || tag.Targets != "Post" {
		t.Fatalf("expected normalized color and targets, got %q %q", tag.Color, tag.Targets)
	}

	if _, err := svc.Create(context.Background(), TagInput{Name: "新标签"}); !errors.Is(err, ErrTagExists) {
		t.Fatalf("expected ErrTagExists, got %v", err)
	}
}

func TestTagServiceListOrdersBySortOrder(t *testing.T) {
	gdb := setupServiceTestDB(t)

	tags := []db.Tag{
		{Name: "Zed", SortOrder: 0},
		{Name: "Alpha", SortOrder: 2},
		{Name: "Beta", SortOrder: 1},
	}
	if err := gdb.Create(&tags).Error; err != nil {
		t.Fatalf("failed to seed tags: %v", err)
	}
	user := seedUser(t, gdb, "author")
	seedPost(t, gdb, user.ID, "tagged", fixedNow, tags[1])

	svc := NewTagService(gdb, nil)
	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}

	if len(list) != 3 {
		t.Fatalf("expected 3 tags, got %d", len(list))
	}

	if list[0].Name != "Zed" || list[1].Name != "Beta" || list[2].Name != "Alpha" {
		t.Fatalf("unexpected order: %+v", []string{list[0].Name, list[1].Name, list[2].Name})
	}
	if list[2].PostCount != 1 || list[0].PostCount != 0 {
		t.Fatalf("unexpected post counts: %d %d", list[2].PostCount, list[0].PostCount)
	}
}

func TestTagServiceReorderUpdatesSortOrder(t *testing.T) {
	gdb := setupServiceTestDB(t)

	tags := []db.Tag{
		{Name: "A", SortOrder: 0},
		{Name: "B", SortOrder: 1},
		{Name: "C", SortOrder: 2},
	}
	if err := gdb.Create(&tags).Error; err != nil {
		t.Fatalf("failed to seed tags: %v", err)
	}

	svc := NewTagService(gdb, nil)
	if err := svc.Reorder(context.Background(), []uint{tags[2].ID, tags[0].ID, tags[1].ID}); err != nil {
		t.Fatalf("reorder tags: %v", err)
	}

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}

	if list[0].Name != "C" || list[1].Name != "A" || list[2].Name != "B" {
		t.Fatalf("unexpected order after reorder: %+v", []string{list[0].Name, list[1].Name, list[2].Name})
	}
	if list[0].SortOrder != 0 || list[1].SortOrder != 1 || list[2].SortOrder != 2 {
		t.Fatalf("unexpected sort_order after reorder: %+v", []int{list[0].SortOrder, list[1].SortOrder, list[2].SortOrder})
	}

	if err := svc.Reorder(context.Background(), []uint{tags[0].ID, tags[0].ID}); !errors.Is(err, ErrTagOrder) {
		t.Fatalf("expected ErrTagOrder for duplicate ids, got %v", err)
	}
	if err := svc.Reorder(context.Background(), []uint{999}); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound for unknown id, got %v", err)
	}
}

func TestTagServiceDeleteRejectsTagInUse(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := seedUser(t, gdb, "author")
	used := seedCategory(t, gdb, "used", "red")
	unused := seedCategory(t, gdb, "unused", "blue")
	seedPost(t, gdb, user.ID, "post", fixedNow.Add(-time.Hour), used)

	svc := NewTagService(gdb, nil)
	if err := svc.Delete(context.Background(), used.ID); !errors.Is(err, ErrTagInUse) {
		t.Fatalf("expected ErrTagInUse, got %v", err)
	}
	if err := svc.Delete(context.Background(), unused.ID); err != nil {
		t.Fatalf("delete unused tag: %v", err)
	}
	if err := svc.Delete(context.Background(), unused.ID); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}
}

func TestTagServiceWritesInvalidateCategorySnapshot(t *testing.T) {
	gdb := setupServiceTestDB(t)
	cache := NewDBCache(gdb)
	categories := NewCategoryService(gdb, cache)
	svc := NewTagService(gdb, categories)

	first := seedCategory(t, gdb, "first", "blue")
	if _, err := categories.Snapshot(context.Background()); err != nil {
		t.Fatalf("warm snapshot: %v", err)
	}

	created, err := svc.Create(context.Background(), TagInput{Name: "urgent", Color: "red", IsCategory: true, Targets: []string{db.TagTargetPost}})
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}

	if _, ok, err := cache.Get(context.Background(), CategoryCacheKey); err != nil || ok {
		t.Fatalf("expected snapshot to be invalidated, ok=%v err=%v", ok, err)
	}

	snapshot, err := categories.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("reload snapshot: %v", err)
	}
	if !equalIDs(categoryIDs(snapshot), []uint{created.ID, first.ID}) {
		t.Fatalf("expected new red category first, got %v", categoryIDs(snapshot))
	}

	if _, err := svc.Update(context.Background(), created.ID, TagInput{Name: "urgent", Color: "red", IsCategory: true, Targets: []string{db.TagTargetImage}}); err != nil {
		t.Fatalf("update tag: %v", err)
	}
	snapshot, err = categories.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("reload snapshot after update: %v", err)
	}
	if !equalIDs(categoryIDs(snapshot), []uint{first.ID}) {
		t.Fatalf("expected image-only category to drop out, got %v", categoryIDs(snapshot))
	}
}
