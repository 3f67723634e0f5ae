package services

import (
	"testing"

	apperrors "huddle/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantCreate(t *testing.T) {
	db := setupTestDB(t)
	service := NewTenantService(db)

	tenant, secret, err := service.Create("Acme", "Acme.COM", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, tenant.PublicKey)
	assert.NotEmpty(t, secret)
	// 域名统一小写
	assert.Equal(t, "acme.com", tenant.Domain)
	// 落库的是散列，不是明文
	assert.NotEqual(t, secret, tenant.SecretHash)
	assert.True(t, tenant.CheckSecret(secret))
}

func TestTenantCreateValidation(t *testing.T) {
	db := setupTestDB(t)
	service := NewTenantService(db)

	_, _, err := service.Create("A", "acme.com", "", "")
	assert.True(t, apperrors.IsValidation(err))

	_, _, err = service.Create("Acme", "  ", "", "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestTenantAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	service := NewTenantService(db)

	tenant, secret, err := service.Create("Acme", "acme.com", "", "")
	require.NoError(t, err)

	// 空Origin视为非浏览器调用
	got, err := service.Authenticate(tenant.PublicKey, secret, "", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, got.ID)

	// 注册域名及其子域名均可
	_, err = service.Authenticate(tenant.PublicKey, secret, "https://acme.com", "10.0.0.1")
	assert.NoError(t, err)
	_, err = service.Authenticate(tenant.PublicKey, secret, "https://app.acme.com:8443", "10.0.0.1")
	assert.NoError(t, err)

	// 公钥、密钥、来源任一不匹配均为统一的认证失败
	_, err = service.Authenticate("no-such-key", secret, "", "10.0.0.1")
	assert.True(t, apperrors.IsUnauthorized(err))

	_, err = service.Authenticate(tenant.PublicKey, "wrong-secret", "", "10.0.0.1")
	assert.True(t, apperrors.IsUnauthorized(err))

	_, err = service.Authenticate(tenant.PublicKey, secret, "https://evil.com", "10.0.0.1")
	assert.True(t, apperrors.IsUnauthorized(err))

	_, err = service.Authenticate(tenant.PublicKey, secret, "https://notacme.com", "10.0.0.1")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestTenantAuthenticateSubdomain(t *testing.T) {
	db := setupTestDB(t)
	service := NewTenantService(db)

	// 限定子域名后只有该子域名可通过
	tenant, secret, err := service.Create("Acme", "acme.com", "app", "")
	require.NoError(t, err)

	_, err = service.Authenticate(tenant.PublicKey, secret, "https://app.acme.com", "10.0.0.1")
	assert.NoError(t, err)

	_, err = service.Authenticate(tenant.PublicKey, secret, "https://other.acme.com", "10.0.0.1")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestTenantAuthenticateIPAllowlist(t *testing.T) {
	db := setupTestDB(t)
	service := NewTenantService(db)

	tenant, secret, err := service.Create("Acme", "acme.com", "", "10.0.0.1, 10.0.0.2")
	require.NoError(t, err)

	_, err = service.Authenticate(tenant.PublicKey, secret, "", "10.0.0.2")
	assert.NoError(t, err)

	_, err = service.Authenticate(tenant.PublicKey, secret, "", "192.168.1.1")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestTenantRevoke(t *testing.T) {
	db := setupTestDB(t)
	service := NewTenantService(db)

	tenant, secret, err := service.Create("Acme", "acme.com", "", "")
	require.NoError(t, err)

	revoked, err := service.Revoke(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "revoked", revoked.Status)

	// 吊销后凭证不再通过认证
	_, err = service.Authenticate(tenant.PublicKey, secret, "", "10.0.0.1")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestTenantGetWithFiltersAndPage(t *testing.T) {
	db := setupTestDB(t)
	service := NewTenantService(db)

	for _, name := range []string{"Acme", "Beta", "Gamma"} {
		_, _, err := service.Create(name, name+".com", "", "")
		require.NoError(t, err)
	}
	acme, err := service.GetByID(1)
	require.NoError(t, err)
	_, err = service.Revoke(acme.ID)
	require.NoError(t, err)

	tenants, total, err := service.GetWithFiltersAndPage("active", "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, tenants, 2)

	tenants, total, err = service.GetWithFiltersAndPage("", "acme", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tenants, 1)
	assert.Equal(t, "Acme", tenants[0].Name)
}
