package models

import (
	"time"
)

// Channel 会话模型
// general: 按成员集合精确去重，名称固定; custom: 按名称在租户内去重
type Channel struct {
	BaseModel
	TenantID uint   `json:"-" gorm:"not null;index;uniqueIndex:idx_channel_tenant_uid;index:idx_channel_tenant_type_name;uniqueIndex:idx_channel_tenant_members"`
	UID      string `json:"uid" gorm:"not null;size:64;uniqueIndex:idx_channel_tenant_uid"`
	Type string `json:"type" gorm:"not null;size:20;index:idx_channel_tenant_type_name;uniqueIndex:idx_channel_tenant_members"`
	// custom会话的名称唯一性由迁移中创建的部分唯一索引
	// idx_channel_custom_name (tenant_id, name) WHERE type = 'custom' 兜底
	Name string `json:"name" gorm:"not null;size:100;index:idx_channel_tenant_type_name;uniqueIndex:idx_channel_tenant_members"`

	// 成员集合签名：内部成员ID升序后以"-"连接
	// 唯一索引(tenant_id,type,name,member_key)使并发创建同一成员集合的general会话只能成功一个
	MemberKey string `json:"-" gorm:"not null;size:255;uniqueIndex:idx_channel_tenant_members"`

	// 活动时间戳：每有新消息落入即更新，会话列表按此排序
	LastMessageAt time.Time `json:"last_message_at" gorm:"not null;index"`

	// 成员列表由显式查询填充，不做关联懒加载
	Members []Customer `json:"members,omitempty" gorm:"-"`
}

// TableName 表名
func (c *Channel) TableName() string {
	return "channels"
}

// 会话类型常量
const (
	ChannelTypeGeneral = "general"
	ChannelTypeCustom  = "custom"
)

// GeneralChannelName general会话的保留名称
const GeneralChannelName = "general"

// 成员数量限制
const (
	MinChannelMembers = 2
	MaxChannelMembers = 5
)
