package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"huddle/internal/models"
	apperrors "huddle/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantService 租户服务
// 租户开通、凭证认证与吊销；业务数据隔离由各服务的tenant_id条件保证
type TenantService struct {
	db *gorm.DB
}

func NewTenantService(db *gorm.DB) *TenantService {
	return &TenantService{db: db}
}

// Create 开通租户，返回租户和一次性明文密钥
// 密钥只在此处返回一次，落库的是bcrypt散列
func (s *TenantService) Create(name, domain, subdomain, allowedIPs string) (*models.Tenant, string, error) {
	if !s.ValidateName(name) {
		return nil, "", apperrors.NewValidation("租户名称长度必须在2-100个字符之间")
	}
	if strings.TrimSpace(domain) == "" {
		return nil, "", apperrors.NewValidation("租户域名不能为空")
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, "", err
	}

	tenant := &models.Tenant{
		Name:       name,
		Domain:     strings.ToLower(strings.TrimSpace(domain)),
		Subdomain:  strings.ToLower(strings.TrimSpace(subdomain)),
		PublicKey:  uuid.NewString(),
		AllowedIPs: allowedIPs,
		Status:     models.TenantStatusActive,
	}
	if err := tenant.SetSecret(secret); err != nil {
		return nil, "", fmt.Errorf("密钥加密失败: %v", err)
	}

	if err := s.db.Create(tenant).Error; err != nil {
		return nil, "", err
	}
	return tenant, secret, nil
}

// Authenticate 认证租户凭证
// 公钥、密钥、来源域名、客户端IP任一不匹配均返回认证错误，不暴露具体原因
func (s *TenantService) Authenticate(publicKey, secret, origin, clientIP string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.Where("public_key = ?", publicKey).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewUnauthorized("认证失败")
		}
		return nil, err
	}

	if tenant.Status != models.TenantStatusActive {
		return nil, apperrors.NewUnauthorized("认证失败")
	}

	if !tenant.CheckSecret(secret) {
		return nil, apperrors.NewUnauthorized("认证失败")
	}

	// 来源域名校验：空Origin视为非浏览器调用，放行
	if origin != "" && !s.matchOrigin(&tenant, origin) {
		return nil, apperrors.NewUnauthorized("认证失败")
	}

	// IP白名单：未配置则不限制
	if tenant.AllowedIPs != "" && !matchIP(tenant.AllowedIPs, clientIP) {
		return nil, apperrors.NewUnauthorized("认证失败")
	}

	return &tenant, nil
}

// matchOrigin 校验Origin是否属于租户注册的域名
func (s *TenantService) matchOrigin(tenant *models.Tenant, origin string) bool {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}
	// 去掉端口
	if idx := strings.LastIndex(host, ":"); idx > 0 && !strings.Contains(host[idx:], "]") {
		host = host[:idx]
	}
	host = strings.ToLower(host)

	if host == tenant.Domain {
		return true
	}
	if strings.HasSuffix(host, "."+tenant.Domain) {
		if tenant.Subdomain == "" {
			return true
		}
		return host == tenant.Subdomain+"."+tenant.Domain
	}
	return false
}

// matchIP 检查IP是否在逗号分隔的白名单中
func matchIP(allowedIPs, clientIP string) bool {
	for _, ip := range strings.Split(allowedIPs, ",") {
		if strings.TrimSpace(ip) == clientIP {
			return true
		}
	}
	return false
}

// GetByID 根据ID获取租户
func (s *TenantService) GetByID(id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.First(&tenant, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("租户不存在")
		}
		return nil, err
	}
	return &tenant, nil
}

// GetWithFiltersAndPage 组合查询（管理端分页）
func (s *TenantService) GetWithFiltersAndPage(status, keyword string, page, pageSize int) ([]*models.Tenant, int64, error) {
	var tenants []*models.Tenant
	var total int64

	query := s.db.Model(&models.Tenant{})

	// 添加过滤条件
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("name LIKE ? OR domain LIKE ?", searchPattern, searchPattern)
	}

	// 计算总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&tenants).Error
	if err != nil {
		return nil, 0, err
	}

	return tenants, total, nil
}

// Revoke 吊销租户，之后该租户凭证不再通过认证
func (s *TenantService) Revoke(id uint) (*models.Tenant, error) {
	tenant, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	tenant.Status = models.TenantStatusRevoked
	if err := s.db.Save(tenant).Error; err != nil {
		return nil, err
	}
	return tenant, nil
}

// ValidateName 验证租户名称长度
func (s *TenantService) ValidateName(name string) bool {
	runeCount := utf8.RuneCountInString(name)
	return runeCount >= 2 && runeCount <= 100
}

// generateSecret 生成随机密钥
func generateSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
