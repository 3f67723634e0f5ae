package database

import (
	"huddle/pkg/config"
	"huddle/pkg/events"
	"sync"
)

var (
	publisherInstance *events.RedisPublisher
	publisherOnce     sync.Once
)

// GetPublisher 获取Redis事件发布器的单例实例
func GetPublisher() *events.RedisPublisher {
	publisherOnce.Do(func() {
		cfg := config.GetConfig()
		publisherInstance = events.NewRedisPublisher(&events.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	})
	return publisherInstance
}

// ClosePublisher 关闭Redis连接
func ClosePublisher() error {
	if publisherInstance != nil {
		return publisherInstance.Close()
	}
	return nil
}
