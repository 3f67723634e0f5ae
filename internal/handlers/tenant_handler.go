package handlers

import (
	"strconv"

	"huddle/internal/services"
	"huddle/pkg/pagination"
	"huddle/pkg/response"

	"github.com/gin-gonic/gin"
)

// CreateTenantRequest 请求结构体
type CreateTenantRequest struct {
	Name       string `json:"name" binding:"required"`
	Domain     string `json:"domain" binding:"required"`
	Subdomain  string `json:"subdomain"`
	AllowedIPs string `json:"allowed_ips"`
}

type TenantHandler struct {
	service *services.TenantService
}

func NewTenantHandler(service *services.TenantService) *TenantHandler {
	return &TenantHandler{
		service: service,
	}
}

// Create 开通租户
// 明文密钥只随本次响应返回一次
func (h *TenantHandler) Create(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	tenant, secret, err := h.service.Create(req.Name, req.Domain, req.Subdomain, req.AllowedIPs)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"tenant": tenant,
		"secret": secret,
	})
}

// GetByID 获取租户
func (h *TenantHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	tenant, err := h.service.GetByID(uint(id))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, tenant)
}

// GetAll 租户列表（管理端，页码分页）
func (h *TenantHandler) GetAll(c *gin.Context) {
	// 解析分页参数
	pageParams := pagination.ParsePageParams(c)

	// 支持按状态筛选、关键词搜索
	status := c.Query("status")
	keyword := c.Query("keyword")

	tenants, total, err := h.service.GetWithFiltersAndPage(status, keyword, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, tenants, pageInfo)
}

// Revoke 吊销租户
func (h *TenantHandler) Revoke(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	tenant, err := h.service.Revoke(uint(id))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithMessage(c, "租户已吊销", tenant)
}
