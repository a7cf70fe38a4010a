package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tagfeed/internal/service"
)

// BlockUser 屏蔽用户
func (a *API) BlockUser(c *gin.Context) {
	targetID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的用户ID")
		return
	}

	if err := a.users.Block(c.Request.Context(), viewerID(c), targetID); err != nil {
		switch {
		case errors.Is(err, service.ErrSelfBlock):
			respondError(c, http.StatusBadRequest, "不能屏蔽自己")
		case errors.Is(err, service.ErrUserNotFound):
			respondError(c, http.StatusNotFound, "用户不存在")
		default:
			respondInternal(c, err, "屏蔽用户失败")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已屏蔽"})
}

// UnblockUser 解除屏蔽
func (a *API) UnblockUser(c *gin.Context) {
	targetID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的用户ID")
		return
	}

	if err := a.users.Unblock(c.Request.Context(), viewerID(c), targetID); err != nil {
		respondInternal(c, err, "解除屏蔽失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已解除屏蔽"})
}
