package services

import (
	"fmt"
	"sync"
	"time"

	"huddle/internal/models"
	"huddle/pkg/logger"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// StatsScheduler 消息量统计调度器
// 周期性输出各租户消息量日志，纯观测用途，不触碰业务状态
type StatsScheduler struct {
	db      *gorm.DB
	cron    *cron.Cron
	spec    string
	lastRun time.Time
	lock    sync.Mutex
	running bool
}

// TenantMessageCount 租户消息量统计
type TenantMessageCount struct {
	TenantID uint  `json:"tenant_id"`
	Count    int64 `json:"count"`
}

// NewStatsScheduler 创建统计调度器
func NewStatsScheduler(db *gorm.DB, spec string) *StatsScheduler {
	if spec == "" {
		spec = "@hourly"
	}
	return &StatsScheduler{
		db:   db,
		cron: cron.New(),
		spec: spec,
	}
}

// Start 启动调度器
func (s *StatsScheduler) Start() error {
	if s.running {
		return fmt.Errorf("调度器已经在运行")
	}

	s.lastRun = time.Now()
	if _, err := s.cron.AddFunc(s.spec, s.collect); err != nil {
		return fmt.Errorf("添加统计任务失败: %v", err)
	}

	s.cron.Start()
	s.running = true

	logger.GetLogger().Infof("Message stats scheduler started, cron: %s", s.spec)
	return nil
}

// Stop 停止调度器
func (s *StatsScheduler) Stop() {
	if !s.running {
		return
	}

	s.cron.Stop()
	s.running = false
	logger.GetLogger().Info("Message stats scheduler stopped")
}

// collect 统计自上次运行以来各租户的消息量
func (s *StatsScheduler) collect() {
	s.lock.Lock()
	since := s.lastRun
	s.lastRun = time.Now()
	s.lock.Unlock()

	counts, err := s.CountSince(since)
	if err != nil {
		logger.GetLogger().Errorf("Failed to collect message stats: %v", err)
		return
	}

	for _, c := range counts {
		logger.GetLogger().WithField("tenant_id", c.TenantID).
			WithField("messages", c.Count).
			Info("Tenant message volume")
	}
}

// CountSince 按租户统计某时刻之后的消息量
func (s *StatsScheduler) CountSince(since time.Time) ([]*TenantMessageCount, error) {
	var counts []*TenantMessageCount
	err := s.db.Model(&models.Message{}).
		Select("tenant_id, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("tenant_id").
		Find(&counts).Error
	return counts, err
}
