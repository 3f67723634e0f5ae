package services

import (
	"fmt"
	"testing"
	"time"

	"huddle/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB 每个测试一个独立的内存数据库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Tenant{},
		&models.Customer{},
		&models.Channel{},
		&models.ChannelMember{},
		&models.Message{},
	)
	require.NoError(t, err)

	// 与正式迁移保持一致的custom会话名称唯一索引
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_channel_custom_name ON channels (tenant_id, name) WHERE type = 'custom'`).Error
	require.NoError(t, err)

	return db
}

func createTestTenant(t *testing.T, db *gorm.DB, name string) *models.Tenant {
	t.Helper()

	tenant := &models.Tenant{
		Name:      name,
		Domain:    "example.com",
		PublicKey: uuid.NewString(),
		Status:    models.TenantStatusActive,
	}
	require.NoError(t, tenant.SetSecret("test-secret"))
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

// createTestCustomer 直接落库，CreatedAt可控以便排序断言
func createTestCustomer(t *testing.T, db *gorm.DB, tenantID uint, name, email string, createdAt time.Time) *models.Customer {
	t.Helper()

	customer := &models.Customer{
		BaseModel: models.BaseModel{CreatedAt: createdAt},
		TenantID:  tenantID,
		UID:       uuid.NewString(),
		Name:      name,
		Email:     email,
	}
	require.NoError(t, db.Create(customer).Error)
	return customer
}

// createTestMessage 直接落库，绕过Send的活动时间更新
func createTestMessage(t *testing.T, db *gorm.DB, tenantID, channelID, senderID uint, content string, createdAt time.Time) *models.Message {
	t.Helper()

	message := &models.Message{
		BaseModel: models.BaseModel{CreatedAt: createdAt},
		TenantID:  tenantID,
		UID:       uuid.NewString(),
		ChannelID: channelID,
		SenderID:  senderID,
		Type:      models.MessageTypeText,
		Content:   content,
	}
	require.NoError(t, db.Create(message).Error)
	return message
}

func setChannelActivity(t *testing.T, db *gorm.DB, channelID uint, at time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&models.Channel{}).Where("id = ?", channelID).
		Update("last_message_at", at).Error)
}

// testBase 测试时间基准，全部用UTC避免时区比较问题
var testBase = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func testEmail(i int) string {
	return fmt.Sprintf("user%03d@example.com", i)
}
