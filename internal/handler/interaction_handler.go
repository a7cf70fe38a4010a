package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tagfeed/internal/service"
)

type reactionRequest struct {
	Reaction string `json:"reaction" binding:"required"`
}

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

// ReactToPost 记录对帖子的反应
func (a *API) ReactToPost(c *gin.Context) {
	postID, reaction, ok := a.parseReaction(c)
	if !ok {
		return
	}

	if err := a.metrics.React(c.Request.Context(), postID, viewerID(c), reaction, a.now()); err != nil {
		respondInteractionError(c, err, "记录反应失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已记录"})
}

// RemoveReaction 撤销对帖子的反应
func (a *API) RemoveReaction(c *gin.Context) {
	postID, reaction, ok := a.parseReaction(c)
	if !ok {
		return
	}

	if err := a.metrics.Unreact(c.Request.Context(), postID, viewerID(c), reaction, a.now()); err != nil {
		respondInteractionError(c, err, "撤销反应失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已撤销"})
}

// CommentOnPost 添加评论
func (a *API) CommentOnPost(c *gin.Context) {
	postID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的帖子ID")
		return
	}

	var req commentRequest
	if !bindJSON(c, &req, "评论内容不能为空") {
		return
	}

	comment, err := a.metrics.Comment(c.Request.Context(), postID, viewerID(c), req.Content, a.now())
	if err != nil {
		respondInteractionError(c, err, "添加评论失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "评论成功", "comment": gin.H{
		"id":        comment.ID,
		"postId":    comment.PostID,
		"userId":    comment.UserID,
		"content":   comment.Content,
		"createdAt": comment.CreatedAt,
	}})
}

func (a *API) parseReaction(c *gin.Context) (uint, service.ReactionType, bool) {
	postID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的帖子ID")
		return 0, "", false
	}

	raw := c.Query("reaction")
	if raw == "" {
		var req reactionRequest
		if !bindJSON(c, &req, "反应类型不能为空") {
			return 0, "", false
		}
		raw = req.Reaction
	}

	reaction, err := service.ParseReaction(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的反应类型")
		return 0, "", false
	}
	return postID, reaction, true
}

func respondInteractionError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		respondError(c, http.StatusNotFound, "帖子不存在")
	case errors.Is(err, service.ErrPostNotPublished):
		respondError(c, http.StatusBadRequest, "帖子尚未发布")
	case errors.Is(err, service.ErrCommentEmpty):
		respondError(c, http.StatusBadRequest, "评论内容不能为空")
	case errors.Is(err, service.ErrReactionInvalid):
		respondError(c, http.StatusBadRequest, "无效的反应类型")
	default:
		respondInternal(c, err, fallback)
	}
}
