package models

import (
	"gorm.io/datatypes"
)

// Customer 终端用户模型
// 邮箱在租户内唯一（非全局）；对外一律使用UID，内部ID不出现在任何API中
type Customer struct {
	BaseModel
	TenantID uint   `json:"-" gorm:"not null;index;uniqueIndex:idx_customer_tenant_uid;uniqueIndex:idx_customer_tenant_email"`
	UID      string `json:"uid" gorm:"not null;size:64;uniqueIndex:idx_customer_tenant_uid"`
	Name     string `json:"name" gorm:"not null;size:100"`
	Email    string `json:"email" gorm:"not null;size:255;uniqueIndex:idx_customer_tenant_email"`

	// 自由元数据，核心不解释内容
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	// 软删除标记：保留审计，后续查询显式排除，不使用隐式默认作用域
	Removed bool `json:"-" gorm:"not null;default:false"`
}

// TableName 表名
func (c *Customer) TableName() string {
	return "customers"
}
