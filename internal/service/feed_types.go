package service

import (
	"errors"
	"strings"
	"time"
)

// Timeframe 表示互动数据的统计窗口。
type Timeframe string

const (
	TimeframeDay     Timeframe = "Day"
	TimeframeWeek    Timeframe = "Week"
	TimeframeMonth   Timeframe = "Month"
	TimeframeYear    Timeframe = "Year"
	TimeframeAllTime Timeframe = "AllTime"
)

// Timeframes lists every supported window, shortest first.
var Timeframes = []Timeframe{TimeframeDay, TimeframeWeek, TimeframeMonth, TimeframeYear, TimeframeAllTime}

// PostSort 表示帖子排序方式。
type PostSort string

const (
	PostSortNewest        PostSort = "Newest"
	PostSortMostReactions PostSort = "Most Reactions"
	PostSortMostComments  PostSort = "Most Comments"
)

// BrowsingMode 控制是否展示不适宜内容。
type BrowsingMode string

const (
	BrowsingModeSFW BrowsingMode = "SFW"
	BrowsingModeAll BrowsingMode = "All"
)

var (
	ErrInvalidTimeframe    = errors.New("invalid timeframe")
	ErrInvalidSort         = errors.New("invalid sort")
	ErrInvalidBrowsingMode = errors.New("invalid browsing mode")
)

// ParseTimeframe 解析时间窗口，空值回退到 AllTime。
func ParseTimeframe(raw string) (Timeframe, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TimeframeAllTime, nil
	}
	for _, tf := range Timeframes {
		if strings.EqualFold(string(tf), trimmed) {
			return tf, nil
		}
	}
	return "", ErrInvalidTimeframe
}

// ParsePostSort 解析排序方式，空值回退到 Newest。
func ParsePostSort(raw string) (PostSort, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return PostSortNewest, nil
	}
	for _, sort := range []PostSort{PostSortNewest, PostSortMostReactions, PostSortMostComments} {
		if strings.EqualFold(string(sort), trimmed) {
			return sort, nil
		}
	}
	return "", ErrInvalidSort
}

// ParseBrowsingMode 解析浏览模式，空值回退到 SFW。
func ParseBrowsingMode(raw string) (BrowsingMode, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return BrowsingModeSFW, nil
	}
	for _, mode := range []BrowsingMode{BrowsingModeSFW, BrowsingModeAll} {
		if strings.EqualFold(string(mode), trimmed) {
			return mode, nil
		}
	}
	return "", ErrInvalidBrowsingMode
}

// Since returns the start of the trailing window ending at now.
// ok is false for AllTime, which has no lower bound.
func (tf Timeframe) Since(now time.Time) (time.Time, bool) {
	switch tf {
	case TimeframeDay:
		return now.Add(-24 * time.Hour), true
	case TimeframeWeek:
		return now.AddDate(0, 0, -7), true
	case TimeframeMonth:
		return now.AddDate(0, -1, 0), true
	case TimeframeYear:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// tagColorPalette 决定分类标签的优先级，越靠前越优先。
var tagColorPalette = []string{
	"red",
	"orange",
	"yellow",
	"green",
	"teal",
	"cyan",
	"blue",
	"indigo",
	"violet",
	"grape",
	"pink",
	"gray",
}

// ColorPriority 返回颜色在调色板中的位置，未知颜色排在最后。
func ColorPriority(color string) int {
	normalized := strings.ToLower(strings.TrimSpace(color))
	for idx, candidate := range tagColorPalette {
		if candidate == normalized {
			return idx
		}
	}
	return len(tagColorPalette)
}
