package models

import (
	"gorm.io/datatypes"
)

// Message 消息模型 - 追加式账本，创建后不可变更、不删除
type Message struct {
	BaseModel
	TenantID  uint   `json:"-" gorm:"not null;index;uniqueIndex:idx_message_tenant_uid"`
	UID       string `json:"uid" gorm:"not null;size:64;uniqueIndex:idx_message_tenant_uid"`
	ChannelID uint   `json:"-" gorm:"not null;index:idx_message_channel"`
	SenderID  uint   `json:"-" gorm:"not null;index:idx_message_sender"`
	Type      string `json:"type" gorm:"not null;size:20"`
	Content   string `json:"content" gorm:"not null;type:text"`

	// 自由元数据，核心不解释内容
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	// 对外引用，由服务层填充
	ChannelUID string `json:"channel_uid" gorm:"-"`
	SenderUID  string `json:"sender_uid" gorm:"-"`
}

// TableName 表名
func (m *Message) TableName() string {
	return "messages"
}

// 消息类型常量
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// ValidMessageType 检查消息类型是否在识别集合内
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	default:
		return false
	}
}
