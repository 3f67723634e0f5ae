package handlers

import (
	"huddle/internal/middleware"
	"huddle/internal/services"
	"huddle/pkg/pagination"
	"huddle/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// CreateCustomerRequest 请求结构体
type CreateCustomerRequest struct {
	Name     string         `json:"name" binding:"required"`
	Email    string         `json:"email" binding:"required,email"`
	Metadata datatypes.JSON `json:"metadata"`
}

type CustomerHandler struct {
	service *services.CustomerService
}

func NewCustomerHandler(service *services.CustomerService) *CustomerHandler {
	return &CustomerHandler{
		service: service,
	}
}

// bindError 绑定错误转换为可读提示
func bindError(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return "参数错误: " + verrs[0].Field()
	}
	return "参数错误"
}

// Create 注册客户
func (h *CustomerHandler) Create(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindError(err))
		return
	}

	customer, err := h.service.Create(tenantID, req.Name, req.Email, req.Metadata)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, customer)
}

// GetByUID 根据外部标识获取客户
func (h *CustomerHandler) GetByUID(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	customer, err := h.service.GetByUID(tenantID, c.Param("uid"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, customer)
}

// GetByEmail 根据邮箱获取客户
func (h *CustomerHandler) GetByEmail(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	email := c.Query("email")
	if email == "" {
		response.BadRequest(c, "缺少email参数")
		return
	}

	customer, err := h.service.GetByEmail(tenantID, email)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, customer)
}

// Remove 移除客户（软删除）
func (h *CustomerHandler) Remove(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	if err := h.service.Remove(tenantID, c.Param("uid")); err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithMessage(c, "客户已移除", nil)
}

// List 客户列表
func (h *CustomerHandler) List(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	params := pagination.ParseCursorParams(c)
	customers, pageInfo, err := h.service.List(tenantID, params)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithCursor(c, customers, pageInfo)
}

// ListActive 活跃客户列表
func (h *CustomerHandler) ListActive(c *gin.Context) {
	tenantID, ok := middleware.CurrentTenantID(c)
	if !ok {
		response.Unauthorized(c, "请先认证")
		return
	}

	params := pagination.ParseCursorParams(c)
	customers, pageInfo, err := h.service.ListActive(tenantID, params)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithCursor(c, customers, pageInfo)
}

// ListActiveForSender 指定发送者视角的活跃客户列表
func (h *CustomerHandler) ListActiveForSender(c *gin.Context) {
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

	params := pagination.ParseCursorParams(c)
	customers, pageInfo, err := h.service.ListActiveForSender(tenantID, senderEmail, params)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithCursor(c, customers, pageInfo)
}
