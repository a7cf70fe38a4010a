package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tagfeed/internal/db"
	"github.com/tagfeed/internal/service"
)

type tagRequest struct {
	Name       string   `json:"name" binding:"required"`
	Color      string   `json:"color"`
	IsCategory bool     `json:"isCategory"`
	Targets    []string `json:"targets"`
}

type tagOrderRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// GetTags 获取标签列表
func (a *API) GetTags(c *gin.Context) {
	tags, err := a.tags.List(c.Request.Context())
	if err != nil {
		respondInternal(c, err, "获取标签列表失败")
		return
	}

	response := make([]gin.H, 0, len(tags))
	for _, tag := range tags {
		response = append(response, tagPayload(tag))
	}

	c.JSON(http.StatusOK, gin.H{"tags": response})
}

// GetCategories 返回按颜色优先级排序的分类标签
func (a *API) GetCategories(c *gin.Context) {
	excluded, err := parseUintQuerySlice(c.QueryArray("excludedTagIds"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的排除标签")
		return
	}
	cursor, err := parseOptionalUintQuery(c, "cursor")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的游标")
		return
	}
	limit, err := parseIntQuery(c, "limit", 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的分类数量")
		return
	}

	page, err := a.categories.Resolve(c.Request.Context(), service.CategoryQuery{
		ExcludeIDs: excluded,
		Limit:      limit,
		Cursor:     cursor,
	})
	if err != nil {
		respondInternal(c, err, "获取分类失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": page.Items, "nextCursor": page.NextCursor})
}

// CreateTag 创建新标签
func (a *API) CreateTag(c *gin.Context) {
	var req tagRequest
	if !bindJSON(c, &req, "标签名称不能为空") {
		return
	}

	tag, err := a.tags.Create(c.Request.Context(), req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTagExists):
			respondError(c, http.StatusBadRequest, "标签已存在")
		case errors.Is(err, service.ErrTagNameRequired):
			respondError(c, http.StatusBadRequest, "标签名称不能为空")
		default:
			respondInternal(c, err, "创建标签失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "标签创建成功", "tag": tagPayload(*tag)})
}

// UpdateTag 更新标签
func (a *API) UpdateTag(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的标签ID")
		return
	}

	var req tagRequest
	if !bindJSON(c, &req, "标签名称不能为空") {
		return
	}

	tag, err := a.tags.Update(c.Request.Context(), id, req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTagExists):
			respondError(c, http.StatusBadRequest, "标签名已存在")
		case errors.Is(err, service.ErrTagNameRequired):
			respondError(c, http.StatusBadRequest, "标签名称不能为空")
		case errors.Is(err, service.ErrTagNotFound):
			respondError(c, http.StatusNotFound, "标签不存在")
		default:
			respondInternal(c, err, "更新标签失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "标签更新成功", "tag": tagPayload(*tag)})
}

// DeleteTag 删除标签
func (a *API) DeleteTag(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的标签ID")
		return
	}

	if err := a.tags.Delete(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrTagInUse):
			respondError(c, http.StatusBadRequest, "标签正在被帖子使用，无法删除")
		case errors.Is(err, service.ErrTagNotFound):
			respondError(c, http.StatusNotFound, "标签不存在")
		default:
			respondInternal(c, err, "删除标签失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "标签删除成功"})
}

// ReorderTags 调整标签顺序
func (a *API) ReorderTags(c *gin.Context) {
	var req tagOrderRequest
	if !bindJSON(c, &req, "标签顺序不能为空") {
		return
	}

	if err := a.tags.Reorder(c.Request.Context(), req.IDs); err != nil {
		switch {
		case errors.Is(err, service.ErrTagOrder):
			respondError(c, http.StatusBadRequest, "无效的标签顺序")
		case errors.Is(err, service.ErrTagNotFound):
			respondError(c, http.StatusNotFound, "标签不存在")
		default:
			respondInternal(c, err, "调整标签顺序失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "标签顺序已更新"})
}

func (r tagRequest) toInput() service.TagInput {
	return service.TagInput{
		Name:       r.Name,
		Color:      r.Color,
		IsCategory: r.IsCategory,
		Targets:    r.Targets,
	}
}

func tagPayload(tag db.Tag) gin.H {
	return gin.H{
		"id":         tag.ID,
		"name":       tag.Name,
		"color":      tag.Color,
		"isCategory": tag.IsCategory,
		"targets":    tag.Targets,
		"sortOrder":  tag.SortOrder,
		"postCount":  tag.PostCount,
	}
}
