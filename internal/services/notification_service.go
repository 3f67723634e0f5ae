package services

import (
	"huddle/internal/models"
	"huddle/pkg/events"
	"huddle/pkg/logger"
)

// NotificationService 消息事件通知
// 核心只产生事实并即发即弃，投递失败记录日志但不影响业务结果
type NotificationService struct {
	publisher *events.RedisPublisher
}

func NewNotificationService(publisher *events.RedisPublisher) *NotificationService {
	return &NotificationService{publisher: publisher}
}

// EmitMessageSent 发布"消息已发送"事件
func (s *NotificationService) EmitMessageSent(tenantID uint, message *models.Message) {
	if s == nil || s.publisher == nil {
		return
	}

	event := &events.MessageSentEvent{
		TenantID:    tenantID,
		ChannelUID:  message.ChannelUID,
		MessageUID:  message.UID,
		SenderUID:   message.SenderUID,
		MessageType: message.Type,
		Content:     message.Content,
		SentAt:      message.CreatedAt.Unix(),
	}

	if err := s.publisher.PublishMessageSent(event); err != nil {
		logger.GetLogger().Errorf("Failed to publish message.sent event: %v", err)
	}
}
