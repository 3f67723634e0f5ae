package main

import (
	"fmt"

	"huddle/internal/database"
	"huddle/internal/models"
	"huddle/pkg/logger"

	"gorm.io/gorm"
)

// seedData 初始化种子数据（仅开发模式）
func seedData() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	db := database.GetDB()

	// 1. 创建开发租户
	tenant, err := createDevTenant(db)
	if err != nil {
		return fmt.Errorf("创建开发租户失败: %v", err)
	}

	// 2. 创建演示客户
	if err := createDemoCustomers(db, tenant); err != nil {
		return fmt.Errorf("创建演示客户失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createDevTenant 创建开发租户（固定凭证，方便本地调试）
func createDevTenant(db *gorm.DB) (*models.Tenant, error) {
	var existing models.Tenant
	err := db.Where("public_key = ?", "dev-tenant-key").First(&existing).Error
	if err == nil {
		logger.GetLogger().Info("开发租户已存在，跳过创建")
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	tenant := &models.Tenant{
		Name:      "开发租户",
		Domain:    "localhost",
		Subdomain: "",
		PublicKey: "dev-tenant-key",
		Status:    models.TenantStatusActive,
	}
	if err := tenant.SetSecret("dev-tenant-secret"); err != nil {
		return nil, err
	}

	if err := db.Create(tenant).Error; err != nil {
		return nil, err
	}

	logger.GetLogger().Info("开发租户创建成功 (key: dev-tenant-key, secret: dev-tenant-secret)")
	return tenant, nil
}

// createDemoCustomers 创建演示客户
func createDemoCustomers(db *gorm.DB, tenant *models.Tenant) error {
	demo := []models.Customer{
		{TenantID: tenant.ID, UID: "demo-alice", Name: "Alice", Email: "alice@example.com"},
		{TenantID: tenant.ID, UID: "demo-bob", Name: "Bob", Email: "bob@example.com"},
	}

	for i := range demo {
		var count int64
		db.Model(&models.Customer{}).
			Where("tenant_id = ? AND uid = ?", tenant.ID, demo[i].UID).
			Count(&count)
		if count > 0 {
			continue
		}
		if err := db.Create(&demo[i]).Error; err != nil {
			return err
		}
	}

	logger.GetLogger().Info("演示客户创建成功")
	return nil
}
