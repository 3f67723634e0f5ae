package pagination

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PageParams 分页参数（页码式，管理端列表使用）
type PageParams struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// PageInfo 分页信息
type PageInfo struct {
	Page       int   `json:"page"`        // 当前页
	PageSize   int   `json:"page_size"`   // 每页大小
	Total      int64 `json:"total"`       // 总记录数
	TotalPages int   `json:"total_pages"` // 总页数
	HasNext    bool  `json:"has_next"`    // 是否有下一页
	HasPrev    bool  `json:"has_prev"`    // 是否有上一页
}

// 分页配置
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100

	DefaultLimit = 20
	MaxLimit     = 100
)

// ParsePageParams 从请求中解析分页参数
func ParsePageParams(c *gin.Context) *PageParams {
	pageStr := c.DefaultQuery("page", "1")
	pageSizeStr := c.DefaultQuery("page_size", "10")

	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = DefaultPage
	}

	pageSize, err := strconv.Atoi(pageSizeStr)
	if err != nil || pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	return &PageParams{
		Page:     page,
		PageSize: pageSize,
	}
}

// NewPageInfo 计算分页信息
func NewPageInfo(page, pageSize int, total int64) *PageInfo {
	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	return &PageInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// GetOffset 计算offset
func (p *PageParams) GetOffset() int {
	return (p.Page - 1) * p.PageSize
}

// GetLimit 计算limit
func (p *PageParams) GetLimit() int {
	return p.PageSize
}

// ========== 游标分页（核心列表统一使用） ==========

// CursorParams 游标分页参数
// cursor为上一页最后一条记录的外部ID，非法游标会被静默忽略并返回首页
type CursorParams struct {
	Limit  int    `json:"limit" form:"limit"`
	Cursor string `json:"cursor" form:"cursor"`
}

// CursorPageInfo 游标分页信息
// Total始终为忽略游标后基础过滤条件下的全量计数
type CursorPageInfo struct {
	Limit   int    `json:"limit"`
	Cursor  string `json:"cursor,omitempty"`
	Total   int64  `json:"total"`
	HasMore bool   `json:"has_more"`
}

// ParseCursorParams 从请求中解析游标分页参数
func ParseCursorParams(c *gin.Context) *CursorParams {
	limitStr := c.DefaultQuery("limit", strconv.Itoa(DefaultLimit))

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return &CursorParams{
		Limit:  limit,
		Cursor: c.Query("cursor"),
	}
}

// NewCursorParams 构造游标分页参数（服务层直接调用时使用）
func NewCursorParams(limit int, cursor string) *CursorParams {
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return &CursorParams{Limit: limit, Cursor: cursor}
}

// NewCursorPageInfo 计算游标分页信息
func NewCursorPageInfo(params *CursorParams, total int64, hasMore bool) *CursorPageInfo {
	return &CursorPageInfo{
		Limit:   params.Limit,
		Cursor:  params.Cursor,
		Total:   total,
		HasMore: hasMore,
	}
}
