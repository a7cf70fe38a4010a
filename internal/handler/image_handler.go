package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tagfeed/internal/db"
	"github.com/tagfeed/internal/service"
)

type moderationRequest struct {
	Status string `json:"status" binding:"required"`
}

// UploadPostImage 处理帖子图片上传请求
func (a *API) UploadPostImage(c *gin.Context) {
	postID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的帖子ID")
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的图片")
		return
	}

	contentType := file.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		respondError(c, http.StatusBadRequest, "只允许上传图片文件")
		return
	}

	body, err := file.Open()
	if err != nil {
		respondInternal(c, err, "读取上传文件失败")
		return
	}
	defer body.Close()

	nsfw, _ := strconv.ParseBool(c.PostForm("nsfw"))
	meta := map[string]interface{}{}
	if prompt := strings.TrimSpace(c.PostForm("prompt")); prompt != "" {
		meta["prompt"] = prompt
	}

	image, err := a.images.Ingest(c.Request.Context(), service.ImageUpload{
		PostID:   postID,
		UserID:   viewerID(c),
		Filename: file.Filename,
		NSFW:     nsfw,
		Meta:     meta,
		Body:     body,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPostNotFound):
			respondError(c, http.StatusNotFound, "帖子不存在")
		case errors.Is(err, service.ErrPostForbidden):
			respondError(c, http.StatusForbidden, "无权操作该帖子")
		case errors.Is(err, service.ErrImageInvalid):
			respondError(c, http.StatusBadRequest, "无法识别的图片格式")
		case errors.Is(err, service.ErrImageTooLarge):
			respondError(c, http.StatusRequestEntityTooLarge, "图片过大")
		default:
			respondInternal(c, err, "保存图片失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "上传成功", "image": imagePayload(*image)})
}

// ListPostImages 返回帖子下的图片
func (a *API) ListPostImages(c *gin.Context) {
	postID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的帖子ID")
		return
	}

	images, err := a.images.ListForPost(c.Request.Context(), postID)
	if err != nil {
		respondInternal(c, err, "获取图片失败")
		return
	}

	viewer := viewerID(c)
	items := make([]gin.H, 0, len(images))
	for _, image := range images {
		if image.ModerationStatus != db.ModerationApproved && image.UserID != viewer {
			continue
		}
		items = append(items, imagePayload(image))
	}
	c.JSON(http.StatusOK, gin.H{"images": items})
}

// SetImageModeration 更新图片审核状态
func (a *API) SetImageModeration(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的图片ID")
		return
	}

	var req moderationRequest
	if !bindJSON(c, &req, "审核状态不能为空") {
		return
	}

	image, err := a.images.SetModeration(c.Request.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrModerationStatusInvalid):
			respondError(c, http.StatusBadRequest, "无效的审核状态")
		case errors.Is(err, service.ErrImageNotFound):
			respondError(c, http.StatusNotFound, "图片不存在")
		default:
			respondInternal(c, err, "更新审核状态失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "审核状态已更新", "image": imagePayload(*image)})
}

func imagePayload(image db.Image) gin.H {
	return gin.H{
		"id":               image.ID,
		"postId":           image.PostID,
		"url":              image.URL,
		"width":            image.Width,
		"height":           image.Height,
		"hash":             image.Hash,
		"nsfw":             image.NSFW,
		"displayIndex":     image.DisplayIndex,
		"moderationStatus": image.ModerationStatus,
		"meta":             image.Meta,
	}
}
