package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tagfeed/internal/service"
)

// GetCategoryFeed 返回按分类分组的帖子信息流
func (a *API) GetCategoryFeed(c *gin.Context) {
	input, err := a.parseFeedInput(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	feed, err := a.feed.GetPostsByCategory(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			respondError(c, http.StatusNotFound, "用户不存在")
		default:
			respondInternal(c, err, "获取分类信息流失败")
		}
		return
	}

	c.JSON(http.StatusOK, feed)
}

func (a *API) parseFeedInput(c *gin.Context) (service.FeedInput, error) {
	input := service.FeedInput{
		Username: c.Query("username"),
		ViewerID: viewerID(c),
	}

	var err error
	if input.Cursor, err = parseOptionalUintQuery(c, "cursor"); err != nil {
		return input, errors.New("无效的游标")
	}
	if input.Limit, err = parseIntQuery(c, "limit", a.feedDefaults.CategoryLimit); err != nil {
		return input, errors.New("无效的分类数量")
	}
	if input.PostLimit, err = parseIntQuery(c, "postLimit", a.feedDefaults.PostLimit); err != nil {
		return input, errors.New("无效的帖子数量")
	}
	if input.Period, err = service.ParseTimeframe(c.Query("period")); err != nil {
		return input, errors.New("无效的时间范围")
	}
	if input.Sort, err = service.ParsePostSort(c.Query("sort")); err != nil {
		return input, errors.New("无效的排序方式")
	}
	if input.BrowsingMode, err = service.ParseBrowsingMode(c.Query("browsingMode")); err != nil {
		return input, errors.New("无效的浏览模式")
	}
	if input.ExcludedTagIDs, err = parseUintQuerySlice(c.QueryArray("excludedTagIds")); err != nil {
		return input, errors.New("无效的排除标签")
	}
	if input.ExcludedUserIDs, err = parseUintQuerySlice(c.QueryArray("excludedUserIds")); err != nil {
		return input, errors.New("无效的排除用户")
	}
	if input.ModelID, err = parseOptionalUintQuery(c, "modelId"); err != nil {
		return input, errors.New("无效的模型ID")
	}
	if input.ModelVersionID, err = parseOptionalUintQuery(c, "modelVersionId"); err != nil {
		return input, errors.New("无效的模型版本ID")
	}
	if input.UserID, err = parseOptionalUintQuery(c, "userId"); err != nil {
		return input, errors.New("无效的用户ID")
	}
	return input, nil
}
