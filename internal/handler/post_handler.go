package handler

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tagfeed/internal/db"
	"github.com/tagfeed/internal/service"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

type postRequest struct {
	Title          string `json:"title" binding:"required"`
	Detail         string `json:"detail"`
	NSFW           bool   `json:"nsfw"`
	ModelID        *uint  `json:"modelId"`
	ModelVersionID *uint  `json:"modelVersionId"`
	TagIDs         []uint `json:"tagIds"`
}

type publishRequest struct {
	PublishedAt *time.Time `json:"publishedAt"`
}

// ListPosts 按 id 倒序分页返回已发布的帖子
func (a *API) ListPosts(c *gin.Context) {
	cursor, err := parseOptionalUintQuery(c, "cursor")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的游标")
		return
	}
	limit, err := parseIntQuery(c, "limit", 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的数量")
		return
	}
	userID, err := parseOptionalUintQuery(c, "userId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的用户ID")
		return
	}
	tagID, err := parseOptionalUintQuery(c, "tagId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的标签ID")
		return
	}

	page, err := a.posts.ListCursor(c.Request.Context(), service.PostCursorQuery{
		Cursor: cursor,
		Limit:  limit,
		UserID: userID,
		TagID:  tagID,
	})
	if err != nil {
		respondInternal(c, err, "获取帖子列表失败")
		return
	}

	items := make([]gin.H, 0, len(page.Items))
	for _, post := range page.Items {
		items = append(items, postSummary(post))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "nextCursor": page.NextCursor})
}

// GetPost 获取单篇帖子，详情以净化后的 HTML 返回
func (a *API) GetPost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的帖子ID")
		return
	}

	post, err := a.posts.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			respondError(c, http.StatusNotFound, "帖子不存在")
			return
		}
		respondInternal(c, err, "获取帖子失败")
		return
	}
	if !post.IsPublished() && post.UserID != viewerID(c) {
		respondError(c, http.StatusNotFound, "帖子不存在")
		return
	}

	detailHTML, err := renderMarkdown(post.Detail)
	if err != nil {
		respondInternal(c, err, "渲染帖子内容失败")
		return
	}

	payload := postSummary(*post)
	payload["detail"] = post.Detail
	payload["detailHtml"] = detailHTML
	payload["username"] = post.User.Username
	c.JSON(http.StatusOK, gin.H{"post": payload})
}

// CreatePost 创建草稿帖子
func (a *API) CreatePost(c *gin.Context) {
	var req postRequest
	if !bindJSON(c, &req, "帖子标题不能为空") {
		return
	}

	post, err := a.posts.Create(c.Request.Context(), req.toInput(viewerID(c)))
	if err != nil {
		a.respondPostError(c, err, "创建帖子失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "帖子创建成功", "post": postSummary(*post)})
}

// UpdatePost 更新帖子
func (a *API) UpdatePost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的帖子ID")
		return
	}

	var req postRequest
	if !bindJSON(c, &req, "帖子标题不能为空") {
		return
	}

	post, err := a.posts.Update(c.Request.Context(), id, req.toInput(viewerID(c)))
	if err != nil {
		a.respondPostError(c, err, "更新帖子失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "帖子更新成功", "post": postSummary(*post)})
}

// PublishPost 发布帖子，未指定时间时立即发布
func (a *API) PublishPost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的帖子ID")
		return
	}

	var req publishRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req, "无效的发布时间") {
			return
		}
	}

	post, err := a.posts.Publish(c.Request.Context(), id, viewerID(c), req.PublishedAt)
	if err != nil {
		a.respondPostError(c, err, "发布帖子失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "帖子已发布", "post": postSummary(*post)})
}

// DeletePost 删除帖子
func (a *API) DeletePost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的帖子ID")
		return
	}

	if err := a.posts.Delete(c.Request.Context(), id, viewerID(c)); err != nil {
		a.respondPostError(c, err, "删除帖子失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "帖子删除成功"})
}

func (a *API) respondPostError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		respondError(c, http.StatusNotFound, "帖子不存在")
	case errors.Is(err, service.ErrPostForbidden):
		respondError(c, http.StatusForbidden, "无权操作该帖子")
	case errors.Is(err, service.ErrPostTitleRequired):
		respondError(c, http.StatusBadRequest, "帖子标题不能为空")
	case errors.Is(err, service.ErrTagNotFound):
		respondError(c, http.StatusBadRequest, "标签不存在")
	default:
		respondInternal(c, err, fallback)
	}
}

func (r postRequest) toInput(userID uint) service.PostInput {
	return service.PostInput{
		Title:          r.Title,
		Detail:         r.Detail,
		NSFW:           r.NSFW,
		ModelID:        r.ModelID,
		ModelVersionID: r.ModelVersionID,
		TagIDs:         r.TagIDs,
		UserID:         userID,
	}
}

func postSummary(post db.Post) gin.H {
	tags := make([]gin.H, 0, len(post.Tags))
	for _, tag := range post.Tags {
		tags = append(tags, gin.H{"id": tag.ID, "name": tag.Name, "color": tag.Color})
	}
	images := make([]gin.H, 0, len(post.Images))
	for _, image := range post.Images {
		images = append(images, imagePayload(image))
	}
	return gin.H{
		"id":             post.ID,
		"title":          post.Title,
		"userId":         post.UserID,
		"nsfw":           post.NSFW,
		"modelId":        post.ModelID,
		"modelVersionId": post.ModelVersionID,
		"publishedAt":    post.PublishedAt,
		"tags":           tags,
		"images":         images,
	}
}

func renderMarkdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return sanitizer.Sanitize(buf.String()), nil
}
