package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"huddle/internal/models"
	apperrors "huddle/pkg/errors"
	"huddle/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CustomerService 客户目录服务
// 所有查询都带tenant_id条件并显式排除已移除客户
type CustomerService struct {
	db *gorm.DB
}

func NewCustomerService(db *gorm.DB) *CustomerService {
	return &CustomerService{db: db}
}

// CustomerActivity 带活跃时间的客户视图（只读派生视图）
type CustomerActivity struct {
	models.Customer
	LastMessageAt time.Time `json:"last_message_at"`
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ========== 基础CRUD方法 ==========

// Create 注册客户
func (s *CustomerService) Create(tenantID uint, name, email string, metadata datatypes.JSON) (*models.Customer, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidation("客户名称不能为空")
	}
	if !emailPattern.MatchString(email) {
		return nil, apperrors.NewValidation("邮箱格式错误")
	}

	// 检查邮箱是否在租户内重复（大小写按存储值精确匹配）
	var count int64
	s.db.Model(&models.Customer{}).Where("tenant_id = ? AND email = ?", tenantID, email).Count(&count)
	if count > 0 {
		return nil, apperrors.NewConflict("邮箱已被注册")
	}

	customer := &models.Customer{
		TenantID: tenantID,
		UID:      uuid.NewString(),
		Name:     name,
		Email:    email,
		Metadata: metadata,
	}

	if err := s.db.Create(customer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.NewConflict("邮箱已被注册")
		}
		return nil, err
	}
	return customer, nil
}

// GetByUID 根据外部标识获取客户
// 跨租户访问与不存在不可区分，统一返回未找到
func (s *CustomerService) GetByUID(tenantID uint, uid string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.Where("tenant_id = ? AND uid = ? AND removed = ?", tenantID, uid, false).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("客户不存在")
		}
		return nil, err
	}
	return &customer, nil
}

// GetByEmail 根据邮箱获取客户
func (s *CustomerService) GetByEmail(tenantID uint, email string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.Where("tenant_id = ? AND email = ? AND removed = ?", tenantID, email, false).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("客户不存在")
		}
		return nil, err
	}
	return &customer, nil
}

// Remove 软删除客户：标记移除、保留审计，后续目录查询不再返回
func (s *CustomerService) Remove(tenantID uint, uid string) error {
	customer, err := s.GetByUID(tenantID, uid)
	if err != nil {
		return err
	}
	return s.db.Model(&models.Customer{}).Where("id = ?", customer.ID).Update("removed", true).Error
}

// ========== 列表查询 ==========

func (s *CustomerService) baseQuery(tenantID uint) *gorm.DB {
	return s.db.Model(&models.Customer{}).Where("tenant_id = ? AND removed = ?", tenantID, false)
}

// List 客户列表，按创建时间降序
func (s *CustomerService) List(tenantID uint, params *pagination.CursorParams) ([]*models.Customer, *pagination.CursorPageInfo, error) {
	// 总数始终按基础过滤条件计算，与游标无关
	var total int64
	if err := s.baseQuery(tenantID).Count(&total).Error; err != nil {
		return nil, nil, err
	}

	query := s.baseQuery(tenantID)
	if params.Cursor != "" {
		var anchor models.Customer
		err := s.db.Where("tenant_id = ? AND uid = ? AND removed = ?", tenantID, params.Cursor, false).First(&anchor).Error
		if err == nil {
			query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
		}
		// 游标无法解析时静默忽略，返回首页
	}

	var customers []*models.Customer
	err := query.Order("created_at DESC, id DESC").Limit(params.Limit + 1).Find(&customers).Error
	if err != nil {
		return nil, nil, err
	}

	hasMore := false
	if len(customers) > params.Limit {
		hasMore = true
		customers = customers[:params.Limit]
	}

	return customers, pagination.NewCursorPageInfo(params, total, hasMore), nil
}

// ListActive 活跃客户列表：至少发过一条消息，按最近发送时间降序
// 并列时后插入者优先
func (s *CustomerService) ListActive(tenantID uint, params *pagination.CursorParams) ([]*CustomerActivity, *pagination.CursorPageInfo, error) {
	base := func() *gorm.DB {
		return s.db.Table("customers").
			Joins("JOIN messages ON messages.sender_id = customers.id").
			Where("customers.tenant_id = ? AND customers.removed = ?", tenantID, false)
	}

	var total int64
	if err := base().Distinct("customers.id").Count(&total).Error; err != nil {
		return nil, nil, err
	}

	query := base().Select("customers.*").Group("customers.id")

	if params.Cursor != "" {
		if anchor, anchorAt, ok := s.resolveActivityCursor(tenantID, params.Cursor, 0); ok {
			query = query.Having(
				"MAX(messages.created_at) < ? OR (MAX(messages.created_at) = ? AND customers.id < ?)",
				anchorAt, anchorAt, anchor.ID,
			)
		}
	}

	var customers []*models.Customer
	err := query.Order("MAX(messages.created_at) DESC, customers.id DESC").Limit(params.Limit + 1).Find(&customers).Error
	if err != nil {
		return nil, nil, err
	}

	hasMore := false
	if len(customers) > params.Limit {
		hasMore = true
		customers = customers[:params.Limit]
	}

	// 逐个补充最近活跃时间
	result := make([]*CustomerActivity, 0, len(customers))
	for _, customer := range customers {
		lastAt, err := s.lastSentAt(customer.ID)
		if err != nil {
			return nil, nil, err
		}
		result = append(result, &CustomerActivity{Customer: *customer, LastMessageAt: lastAt})
	}

	return result, pagination.NewCursorPageInfo(params, total, hasMore), nil
}

// ListActiveForSender 限定到与指定发送者有共享会话且互有消息往来的活跃客户
// 活跃时间取双方（任一方向）最近一条消息的时间
// 发送者邮箱无法解析时返回空页而非错误
func (s *CustomerService) ListActiveForSender(tenantID uint, senderEmail string, params *pagination.CursorParams) ([]*CustomerActivity, *pagination.CursorPageInfo, error) {
	sender, err := s.GetByEmail(tenantID, senderEmail)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return []*CustomerActivity{}, pagination.NewCursorPageInfo(params, 0, false), nil
		}
		return nil, nil, err
	}

	base := func() *gorm.DB {
		return s.db.Table("customers").
			Joins("JOIN channel_members cm_other ON cm_other.customer_id = customers.id").
			Joins("JOIN channel_members cm_self ON cm_self.channel_id = cm_other.channel_id AND cm_self.customer_id = ?", sender.ID).
			Joins("JOIN messages ON messages.channel_id = cm_other.channel_id AND (messages.sender_id = customers.id OR messages.sender_id = ?)", sender.ID).
			Where("customers.tenant_id = ? AND customers.removed = ? AND customers.id <> ?", tenantID, false, sender.ID)
	}

	var total int64
	if err := base().Distinct("customers.id").Count(&total).Error; err != nil {
		return nil, nil, err
	}

	query := base().Select("customers.*").Group("customers.id")

	if params.Cursor != "" {
		if anchor, anchorAt, ok := s.resolveActivityCursor(tenantID, params.Cursor, sender.ID); ok {
			query = query.Having(
				"MAX(messages.created_at) < ? OR (MAX(messages.created_at) = ? AND customers.id < ?)",
				anchorAt, anchorAt, anchor.ID,
			)
		}
	}

	var customers []*models.Customer
	err = query.Order("MAX(messages.created_at) DESC, customers.id DESC").Limit(params.Limit + 1).Find(&customers).Error
	if err != nil {
		return nil, nil, err
	}

	hasMore := false
	if len(customers) > params.Limit {
		hasMore = true
		customers = customers[:params.Limit]
	}

	result := make([]*CustomerActivity, 0, len(customers))
	for _, customer := range customers {
		lastAt, err := s.lastExchangedAt(sender.ID, customer.ID)
		if err != nil {
			return nil, nil, err
		}
		result = append(result, &CustomerActivity{Customer: *customer, LastMessageAt: lastAt})
	}

	return result, pagination.NewCursorPageInfo(params, total, hasMore), nil
}

// ========== 内部辅助 ==========

// resolveActivityCursor 解析活跃列表游标
// withSenderID非0时按双方往来时间定位，否则按游标客户自身最近发送时间定位
func (s *CustomerService) resolveActivityCursor(tenantID uint, cursor string, withSenderID uint) (*models.Customer, time.Time, bool) {
	var anchor models.Customer
	err := s.db.Where("tenant_id = ? AND uid = ? AND removed = ?", tenantID, cursor, false).First(&anchor).Error
	if err != nil {
		return nil, time.Time{}, false
	}

	var anchorAt time.Time
	if withSenderID != 0 {
		anchorAt, err = s.lastExchangedAt(withSenderID, anchor.ID)
	} else {
		anchorAt, err = s.lastSentAt(anchor.ID)
	}
	if err != nil {
		return nil, time.Time{}, false
	}
	return &anchor, anchorAt, true
}

// lastSentAt 客户最近一条发送消息的时间
func (s *CustomerService) lastSentAt(customerID uint) (time.Time, error) {
	var msg models.Message
	err := s.db.Where("sender_id = ?", customerID).Order("created_at DESC, id DESC").First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, fmt.Errorf("客户无发送记录")
		}
		return time.Time{}, err
	}
	return msg.CreatedAt, nil
}

// lastExchangedAt 双方在共享会话内（任一方向）最近一条消息的时间
func (s *CustomerService) lastExchangedAt(aID, bID uint) (time.Time, error) {
	shared := s.db.Table("channel_members cm1").
		Select("cm1.channel_id").
		Joins("JOIN channel_members cm2 ON cm2.channel_id = cm1.channel_id").
		Where("cm1.customer_id = ? AND cm2.customer_id = ?", aID, bID)

	var msg models.Message
	err := s.db.Where("sender_id IN ? AND channel_id IN (?)", []uint{aID, bID}, shared).
		Order("created_at DESC, id DESC").First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, fmt.Errorf("双方无消息往来")
		}
		return time.Time{}, err
	}
	return msg.CreatedAt, nil
}
