package handlers

import (
	"huddle/internal/middleware"
	"huddle/internal/services"
	"huddle/pkg/pagination"
	"huddle/pkg/response"

	"github.com/gin-gonic/gin"
)

// CreateGeneralChannelRequest 请求结构体
type CreateGeneralChannelRequest struct {
	MemberUIDs []string `json:"member_uids" binding:"required"`
}

// CreateCustomChannelRequest 请求结构体
type CreateCustomChannelRequest struct {
	Name       string   `json:"name" binding:"required"`
	MemberUIDs []string `json:"member_uids" binding:"required"`
}

type ChannelHandler struct {
	service *services.ChannelService
}

func NewChannelHandler(service *services.ChannelService) *ChannelHandler {
	return &ChannelHandler{
		service: service,
	}
}

// CreateGeneral 创建普通会话
// 同一成员集合只允许存在一个普通会话
func (h *ChannelHandler) CreateGeneral(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	var req CreateGeneralChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindError(err))
		return
	}

	channel, err := h.service.CreateGeneral(tenantID, req.MemberUIDs)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, channel)
}

// CreateCustom 创建自定义会话
// 同名自定义会话直接返回已有会话
func (h *ChannelHandler) CreateCustom(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	var req CreateCustomChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindError(err))
		return
	}

	channel, err := h.service.CreateCustom(tenantID, req.Name, req.MemberUIDs)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, channel)
}

// GetByUID 获取会话详情（含成员）
func (h *ChannelHandler) GetByUID(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	channel, err := h.service.GetByUID(tenantID, c.Param("uid"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, channel)
}

// List 会话列表（按最近活跃排序）
func (h *ChannelHandler) List(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	params := pagination.ParseCursorParams(c)
	channels, pageInfo, err := h.service.List(tenantID, params)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithCursor(c, channels, pageInfo)
}

// ListForCustomer 客户参与的全部会话
func (h *ChannelHandler) ListForCustomer(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	channels, err := h.service.ListForCustomer(tenantID, c.Param("uid"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, channels)
}

// ListGroupedByRecipient 按对端客户分组的会话视图
func (h *ChannelHandler) ListGroupedByRecipient(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	senderEmail := c.Query("sender_email")
	if senderEmail == "" {
		response.BadRequest(c, "缺少sender_email参数")
		return
	}

	groups, err := h.service.ListGroupedByRecipient(tenantID, senderEmail)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, groups)
}
