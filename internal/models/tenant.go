package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Tenant 租户模型 - 数据隔离边界
// 创建后除吊销外不可变更；所有业务实体都以tenant_id为查询前提
type Tenant struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Name       string `json:"name" gorm:"not null;size:100"`
	Domain     string `json:"domain" gorm:"not null;size:255;index"`
	Subdomain  string `json:"subdomain" gorm:"size:100"`
	PublicKey  string `json:"public_key" gorm:"uniqueIndex;not null;size:64"`
	SecretHash string `json:"-" gorm:"not null;size:255"`
	AllowedIPs string `json:"allowed_ips" gorm:"size:500"` // 逗号分隔的IP白名单，空表示不限制
	Status     string `json:"status" gorm:"default:'active';size:20"`
}

// TableName 表名
func (t *Tenant) TableName() string {
	return "tenants"
}

// 租户状态常量
const (
	TenantStatusActive  = "active"
	TenantStatusRevoked = "revoked"
)

// SetSecret 设置密钥 - 只保存散列，明文仅在创建时返回一次
func (t *Tenant) SetSecret(secret string) error {
	hashedSecret, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	t.SecretHash = string(hashedSecret)
	return nil
}

// CheckSecret 校验密钥 - bcrypt比较，恒定时间
func (t *Tenant) CheckSecret(secret string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(t.SecretHash), []byte(secret))
	return err == nil
}
