package handler

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tagfeed/internal/db"
)

func TestCreateTagDuplicateName(t *testing.T) {
	api, gdb := setupTestDB(t)

	if err := gdb.Create(&db.Tag{Name: "Go"}).Error; err != nil {
		t.Fatalf("failed to seed tag: %v", err)
	}

	c, w := newTestContext(http.MethodPost, "/api/tags", jsonBody(t, map[string]any{"name": "Go"}), 1)
	api.CreateTag(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestUpdateTagDuplicateName(t *testing.T) {
	api, gdb := setupTestDB(t)

	tagA := db.Tag{Name: "Go"}
	tagB := db.Tag{Name: "Gin"}
	if err := gdb.Create(&tagA).Error; err != nil {
		t.Fatalf("failed to seed tagA: %v", err)
	}
	if err := gdb.Create(&tagB).Error; err != nil {
		t.Fatalf("failed to seed tagB: %v", err)
	}

	id := strconv.Itoa(int(tagB.ID))
	c, w := newTestContext(http.MethodPut, "/api/tags/"+id, jsonBody(t, map[string]any{"name": "Go"}), 1)
	c.Params = gin.Params{gin.Param{Key: "id", Value: id}}
	api.UpdateTag(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestDeleteTagBlockedWhenInUse(t *testing.T) {
	api, gdb := setupTestDB(t)
	user := seedUser(t, gdb, "author")

	tag := db.Tag{Name: "Go"}
	if err := gdb.Create(&tag).Error; err != nil {
		t.Fatalf("failed to seed tag: %v", err)
	}
	seedPublishedPost(t, gdb, user.ID, "tagged", tag)

	id := strconv.Itoa(int(tag.ID))
	c, w := newTestContext(http.MethodDelete, "/api/tags/"+id, nil, 1)
	c.Params = gin.Params{gin.Param{Key: "id", Value: id}}
	api.DeleteTag(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestCreateCategoryInvalidatesResolverCache(t *testing.T) {
	api, gdb := setupTestDB(t)
	if err := gdb.Create(&db.Tag{Name: "Blue", Color: "blue", IsCategory: true, Targets: db.TagTargetPost}).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}

	c, w := newTestContext(http.MethodGet, "/api/tags/categories", nil, 0)
	api.GetCategories(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	c, w = newTestContext(http.MethodPost, "/api/tags", jsonBody(t, map[string]any{
		"name":       "Red",
		"color":      "red",
		"isCategory": true,
		"targets":    []string{"Post"},
	}), 1)
	api.CreateTag(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	c, w = newTestContext(http.MethodGet, "/api/tags/categories?limit=1", nil, 0)
	api.GetCategories(c)

	var resp struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
		NextCursor *uint `json:"nextCursor"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Items) != 1 || resp.Items[0].Name != "Red" || resp.NextCursor == nil {
		t.Fatalf("expected fresh snapshot with red first, got %+v", resp)
	}
}

func TestReorderTagsRejectsDuplicates(t *testing.T) {
	api, gdb := setupTestDB(t)
	tag := db.Tag{Name: "Go"}
	if err := gdb.Create(&tag).Error; err != nil {
		t.Fatalf("seed tag: %v", err)
	}

	c, w := newTestContext(http.MethodPut, "/api/tags/order", jsonBody(t, map[string]any{"ids": []uint{tag.ID, tag.ID}}), 1)
	api.ReorderTags(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}
