package database

import (
	"huddle/internal/models"
	"huddle/pkg/logger"
)

// Migrate 执行数据库迁移
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := DB.AutoMigrate(
		&models.Tenant{},
		&models.Customer{},
		&models.Channel{},
		&models.ChannelMember{},
		&models.Message{},
	)

	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	// custom会话名称在租户内唯一，只约束custom类型，不影响general会话
	// 并发创建同名会话时由此索引裁决
	err = DB.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_channel_custom_name ON channels (tenant_id, name) WHERE type = 'custom'`).Error
	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")

	return nil
}
