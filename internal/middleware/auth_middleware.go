package middleware

import (
	"strings"

	"huddle/internal/models"
	"huddle/internal/services"
	"huddle/pkg/jwt"
	"huddle/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 认证中间件
// 租户API走公钥+密钥+来源校验，管理API走平台JWT
type AuthMiddleware struct {
	tenantService *services.TenantService
	jwtManager    *jwt.JWTManager
}

func NewAuthMiddleware(tenantService *services.TenantService) *AuthMiddleware {
	return &AuthMiddleware{
		tenantService: tenantService,
		jwtManager:    jwt.GetJWTManager(), // 使用全局JWT管理器
	}
}

// RequireTenant 租户凭证认证
// 认证通过后将租户写入上下文，核心操作只接收已解析的租户ID
func (m *AuthMiddleware) RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		publicKey := c.GetHeader("X-Api-Key")
		secret := c.GetHeader("X-Api-Secret")
		if publicKey == "" || secret == "" {
			response.Unauthorized(c, "缺少API凭证")
			c.Abort()
			return
		}

		origin := c.GetHeader("Origin")
		tenant, err := m.tenantService.Authenticate(publicKey, secret, origin, c.ClientIP())
		if err != nil {
			response.Unauthorized(c, "认证失败")
			c.Abort()
			return
		}

		c.Set("tenant", tenant)
		c.Set("tenant_id", tenant.ID)

		c.Next()
	}
}

// RequireAdmin 平台管理认证
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		// 检查Bearer格式
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		tokenString := authHeader[7:] // 去掉 "Bearer "

		claims, err := m.jwtManager.VerifyToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		if !claims.IsPlatformAdmin {
			response.Forbidden(c, "需要平台管理员权限")
			c.Abort()
			return
		}

		c.Set("admin_subject", claims.Subject)

		c.Next()
	}
}

// CurrentTenant 从上下文取出已认证租户
func CurrentTenant(c *gin.Context) (*models.Tenant, bool) {
	value, exists := c.Get("tenant")
	if !exists {
		return nil, false
	}
	tenant, ok := value.(*models.Tenant)
	return tenant, ok
}

// CurrentTenantID 从上下文取出已认证租户ID
func CurrentTenantID(c *gin.Context) (uint, bool) {
	value, exists := c.Get("tenant_id")
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}
