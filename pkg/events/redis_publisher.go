package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisPublisher Redis事件发布器
// 核心只产生"消息已发送"事实，投递由订阅方（WebSocket等）各自消费
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// MessageSentEvent 消息发送事件
type MessageSentEvent struct {
	Event       string                 `json:"event"`
	TenantID    uint                   `json:"tenant_id"`
	ChannelUID  string                 `json:"channel_uid"`
	MessageUID  string                 `json:"message_uid"`
	SenderUID   string                 `json:"sender_uid"`
	MessageType string                 `json:"message_type"`
	Content     string                 `json:"content"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	SentAt      int64                  `json:"sent_at"`
}

// EventMessageSent 事件名常量
const EventMessageSent = "message.sent"

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisPublisher 创建Redis事件发布器
func NewRedisPublisher(config *Config) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "huddle:events"
	}

	return &RedisPublisher{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Ping 测试Redis连接
func (p *RedisPublisher) Ping() error {
	ctx := context.Background()
	return p.client.Ping(ctx).Err()
}

// GetClient 获取底层客户端（订阅方使用）
func (p *RedisPublisher) GetClient() *redis.Client {
	return p.client
}

// TenantChannel 租户事件频道名
func (p *RedisPublisher) TenantChannel(tenantID uint) string {
	return fmt.Sprintf("%s:tenant:%d", p.prefix, tenantID)
}

// PublishMessageSent 发布消息发送事件（即发即弃，不等待订阅方）
func (p *RedisPublisher) PublishMessageSent(event *MessageSentEvent) error {
	event.Event = EventMessageSent
	if event.SentAt == 0 {
		event.SentAt = time.Now().Unix()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %v", err)
	}

	ctx := context.Background()
	return p.client.Publish(ctx, p.TenantChannel(event.TenantID), data).Err()
}
