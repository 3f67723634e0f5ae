package models

import (
	"time"
)

// ChannelMember 会话成员关系
// 显式连接表：成员查询走仓储方法，保证每条路径都带租户约束
type ChannelMember struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ChannelID  uint      `gorm:"not null;index;uniqueIndex:idx_channel_customer" json:"channel_id"`
	CustomerID uint      `gorm:"not null;index;uniqueIndex:idx_channel_customer" json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 表名
func (ChannelMember) TableName() string {
	return "channel_members"
}
