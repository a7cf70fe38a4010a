package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/tagfeed/internal/service"
)

const (
	sessionUserIDKey   = "user_id"
	sessionUsernameKey = "username"
	viewerContextKey   = "__viewer_id"
)

type loginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// Login 校验用户名密码并写入会话
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "用户名和密码不能为空")
		return
	}

	user, err := a.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "用户名或密码错误")
			return
		}
		respondInternal(c, err, "登录失败")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserIDKey, user.ID)
	session.Set(sessionUsernameKey, user.Username)
	if err := session.Save(); err != nil {
		respondInternal(c, err, "会话保存失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "登录成功", "user": gin.H{"id": user.ID, "username": user.Username}})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondInternal(c, err, "会话保存失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// AuthRequired 要求请求携带有效会话
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionUserID(c) == 0 {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminRequired 只允许配置的管理员账号通过，未配置管理员时拒绝所有请求。
func AdminRequired(adminUsername string) gin.HandlerFunc {
	adminUsername = strings.TrimSpace(adminUsername)
	return func(c *gin.Context) {
		if adminUsername == "" || sessionUsername(c) != adminUsername {
			respondError(c, http.StatusForbidden, "仅管理员可执行此操作")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Viewer 把会话中的用户 ID 放入请求上下文，匿名访问时为 0。
func Viewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(viewerContextKey, sessionUserID(c))
		c.Next()
	}
}

func viewerID(c *gin.Context) uint {
	if value, ok := c.Get(viewerContextKey); ok {
		if id, ok := value.(uint); ok {
			return id
		}
	}
	return sessionUserID(c)
}

func sessionUserID(c *gin.Context) uint {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return 0
	}
	switch id := sessions.Default(c).Get(sessionUserIDKey).(type) {
	case uint:
		return id
	case int:
		if id > 0 {
			return uint(id)
		}
	case int64:
		if id > 0 {
			return uint(id)
		}
	}
	return 0
}

func sessionUsername(c *gin.Context) string {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return ""
	}
	username, _ := sessions.Default(c).Get(sessionUsernameKey).(string)
	return username
}
