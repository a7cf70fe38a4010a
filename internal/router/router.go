package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/tagfeed/internal/handler"
	"github.com/tagfeed/internal/logger"
)

// Options 汇总路由初始化所需的参数。
type Options struct {
	SessionSecret string
	UploadDir     string
	UploadURLPath string
	AdminUsername string
	Logger        zerolog.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(opts.Logger))

	// 配置会话中间件
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: 7 * 24 * 3600})
	r.Use(sessions.Sessions("tagfeed_session", store))
	r.Use(handler.Viewer())

	uploadURL := strings.TrimRight(opts.UploadURLPath, "/")
	if uploadURL == "" {
		uploadURL = "/static/uploads"
	}
	if opts.UploadDir != "" {
		r.Static(uploadURL, opts.UploadDir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	public := r.Group("/api")
	{
		public.POST("/login", api.Login)
		public.POST("/logout", api.Logout)

		public.GET("/feed/categories", api.GetCategoryFeed)

		public.GET("/posts", api.ListPosts)
		public.GET("/posts/:id", api.GetPost)
		public.GET("/posts/:id/images", api.ListPostImages)

		public.GET("/tags", api.GetTags)
		public.GET("/tags/categories", api.GetCategories)
	}

	// 需要登录的接口
	auth := r.Group("/api")
	auth.Use(handler.AuthRequired())
	{
		auth.POST("/posts", api.CreatePost)
		auth.PUT("/posts/:id", api.UpdatePost)
		auth.PUT("/posts/:id/publish", api.PublishPost)
		auth.DELETE("/posts/:id", api.DeletePost)
		auth.POST("/posts/:id/images", api.UploadPostImage)
		auth.POST("/posts/:id/reactions", api.ReactToPost)
		auth.DELETE("/posts/:id/reactions", api.RemoveReaction)
		auth.POST("/posts/:id/comments", api.CommentOnPost)

		auth.POST("/tags", api.CreateTag)
		auth.PUT("/tags/order", api.ReorderTags)
		auth.PUT("/tags/:id", api.UpdateTag)
		auth.DELETE("/tags/:id", api.DeleteTag)

		auth.POST("/users/:id/block", api.BlockUser)
		auth.DELETE("/users/:id/block", api.UnblockUser)
	}

	// 仅管理员可用的接口
	admin := r.Group("/api")
	admin.Use(handler.AuthRequired(), handler.AdminRequired(opts.AdminUsername))
	{
		admin.PUT("/images/:id/moderation", api.SetImageModeration)
	}

	return r
}
