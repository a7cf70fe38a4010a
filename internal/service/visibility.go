package service

import (
	"context"
	"fmt"
)

// VisibilityFilters 是按访问者构建的可见性条件，由帖子与图片查询共同使用。
type VisibilityFilters struct {
	SafeOnly       bool
	ViewerID       uint
	BlockedUserIDs []uint
}

// BuildVisibility 根据访问者与浏览模式生成可见性条件。
func (s *UserService) BuildVisibility(ctx context.Context, viewerID uint, mode BrowsingMode) (VisibilityFilters, error) {
	filters := VisibilityFilters{
		SafeOnly: mode != BrowsingModeAll,
		ViewerID: viewerID,
	}

	blocked, err := s.BlockedIDs(ctx, viewerID)
	if err != nil {
		return filters, fmt.Errorf("load blocked users: %w", err)
	}
	filters.BlockedUserIDs = blocked
	return filters, nil
}
