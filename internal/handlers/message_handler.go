package handlers

import (
	"huddle/internal/middleware"
	"huddle/internal/models"
	"huddle/internal/services"
	"huddle/pkg/pagination"
	"huddle/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// SendMessageRequest 请求结构体
type SendMessageRequest struct {
	ChannelUID string         `json:"channel_uid" binding:"required"`
	SenderUID  string         `json:"sender_uid" binding:"required"`
	Type       string         `json:"type"`
	Content    string         `json:"content" binding:"required"`
	Metadata   datatypes.JSON `json:"metadata"`
}

// SendDirectMessageRequest 请求结构体
type SendDirectMessageRequest struct {
	SenderEmail    string         `json:"sender_email" binding:"required,email"`
	RecipientEmail string         `json:"recipient_email" binding:"required,email"`
	Type           string         `json:"type"`
	Content        string         `json:"content" binding:"required"`
	Metadata       datatypes.JSON `json:"metadata"`
}

type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{
		service: service,
	}
}

// Send 发送消息
func (h *MessageHandler) Send(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindError(err))
		return
	}

	if req.Type == "" {
		req.Type = models.MessageTypeText
	}

	message, err := h.service.Send(tenantID, req.ChannelUID, req.SenderUID, req.Type, req.Content, req.Metadata)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, message)
}

// SendDirect 按邮箱直发
// 两人之间没有普通会话时自动创建
func (h *MessageHandler) SendDirect(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	var req SendDirectMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindError(err))
		return
	}

	if req.Type == "" {
		req.Type = models.MessageTypeText
	}

	message, err := h.service.SendToCustomer(tenantID, req.SenderEmail, req.RecipientEmail, req.Type, req.Content, req.Metadata)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, message)
}

// ListForChannel 会话消息（时间升序）
func (h *MessageHandler) ListForChannel(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	params := pagination.ParseCursorParams(c)
	messages, pageInfo, err := h.service.ListForChannel(tenantID, c.Param("uid"), params)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithCursor(c, messages, pageInfo)
}

// ListForCustomer 客户全部会话的消息动态（时间降序）
func (h *MessageHandler) ListForCustomer(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	params := pagination.ParseCursorParams(c)
	messages, pageInfo, err := h.service.ListForCustomer(tenantID, c.Param("uid"), params)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithCursor(c, messages, pageInfo)
}

// ListBetween 两个客户之间的消息动态（时间降序）
func (h *MessageHandler) ListBetween(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	email1 := c.Query("email1")
	email2 := c.Query("email2")
	if email1 == "" || email2 == "" {
		response.BadRequest(c, "缺少email1或email2参数")
		return
	}

	params := pagination.ParseCursorParams(c)
	messages, pageInfo, err := h.service.ListBetweenCustomers(tenantID, email1, email2, params)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithCursor(c, messages, pageInfo)
}
