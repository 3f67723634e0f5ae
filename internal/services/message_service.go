package services

import (
	"errors"
	"strings"

	"huddle/internal/models"
	apperrors "huddle/pkg/errors"
	"huddle/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MessageService 消息账本服务
// 追加式写入；会话内列表升序（从头读对话），客户维度列表降序（动态流）
type MessageService struct {
	db       *gorm.DB
	channels *ChannelService
	notifier *NotificationService
}

func NewMessageService(db *gorm.DB, channels *ChannelService, notifier *NotificationService) *MessageService {
	return &MessageService{
		db:       db,
		channels: channels,
		notifier: notifier,
	}
}

// ========== 写入 ==========

// Send 向会话追加消息
// 会话/发送者缺失按请求参数错误处理；消息写入与会话活动时间更新在同一事务内
func (s *MessageService) Send(tenantID uint, channelUID, senderUID, msgType, content string, metadata datatypes.JSON) (*models.Message, error) {
	var channel models.Channel
	err := s.db.Where("tenant_id = ? AND uid = ?", tenantID, channelUID).First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewValidation("会话不存在")
		}
		return nil, err
	}

	var sender models.Customer
	err = s.db.Where("tenant_id = ? AND uid = ? AND removed = ?", tenantID, senderUID, false).First(&sender).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewValidation("发送者不存在")
		}
		return nil, err
	}

	isMember, err := s.channels.IsMember(channel.ID, sender.ID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.NewValidation("发送者不是会话成员")
	}

	if !models.ValidMessageType(msgType) {
		return nil, apperrors.NewValidation("不支持的消息类型")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidation("消息内容不能为空")
	}

	message := &models.Message{
		TenantID:  tenantID,
		UID:       uuid.NewString(),
		ChannelID: channel.ID,
		SenderID:  sender.ID,
		Type:      msgType,
		Content:   content,
		Metadata:  metadata,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		// 活动时间戳与消息创建同事务提交，并发时后写者胜
		return tx.Model(&models.Channel{}).
			Where("id = ?", channel.ID).
			Update("last_message_at", message.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}

	message.ChannelUID = channel.UID
	message.SenderUID = sender.UID

	// 事务提交后发布事件，投递失败不影响写入结果
	s.notifier.EmitMessageSent(tenantID, message)

	return message, nil
}

// SendToCustomer 按邮箱向指定客户发送消息
// 解析双方后复用双人general会话，不存在则创建；并发创建冲突时改为取回既有会话
func (s *MessageService) SendToCustomer(tenantID uint, senderEmail, recipientEmail, msgType, content string, metadata datatypes.JSON) (*models.Message, error) {
	sender, err := s.findCustomerByEmail(tenantID, senderEmail)
	if err != nil {
		return nil, err
	}
	recipient, err := s.findCustomerByEmail(tenantID, recipientEmail)
	if err != nil {
		return nil, err
	}

	members := []models.Customer{*sender, *recipient}
	channel, err := s.channels.FindGeneralByMembers(tenantID, members)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return nil, err
		}
		channel, err = s.channels.CreateGeneral(tenantID, []string{sender.UID, recipient.UID})
		if err != nil {
			if !apperrors.IsConflict(err) {
				return nil, err
			}
			// 另一并发请求刚创建成功，取回它的会话
			channel, err = s.channels.FindGeneralByMembers(tenantID, members)
			if err != nil {
				return nil, err
			}
		}
	}

	return s.Send(tenantID, channel.UID, sender.UID, msgType, content, metadata)
}

// ========== 列表查询 ==========

// ListForChannel 会话消息列表，按创建时间升序
func (s *MessageService) ListForChannel(tenantID uint, channelUID string, params *pagination.CursorParams) ([]*models.Message, *pagination.CursorPageInfo, error) {
	var channel models.Channel
	err := s.db.Where("tenant_id = ? AND uid = ?", tenantID, channelUID).First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.NewNotFound("会话不存在")
		}
		return nil, nil, err
	}

	var total int64
	if err := s.db.Model(&models.Message{}).Where("channel_id = ?", channel.ID).Count(&total).Error; err != nil {
		return nil, nil, err
	}

	query := s.db.Where("channel_id = ?", channel.ID)
	if params.Cursor != "" {
		var anchor models.Message
		err := s.db.Where("tenant_id = ? AND uid = ? AND channel_id = ?", tenantID, params.Cursor, channel.ID).
			First(&anchor).Error
		if err == nil {
			query = query.Where("created_at > ? OR (created_at = ? AND id > ?)",
				anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
		}
	}

	var messages []*models.Message
	err = query.Order("created_at ASC, id ASC").Limit(params.Limit + 1).Find(&messages).Error
	if err != nil {
		return nil, nil, err
	}

	hasMore := false
	if len(messages) > params.Limit {
		hasMore = true
		messages = messages[:params.Limit]
	}

	if err := s.decorate(messages); err != nil {
		return nil, nil, err
	}

	return messages, pagination.NewCursorPageInfo(params, total, hasMore), nil
}

// ListForCustomer 客户发送的全部消息（跨会话），按创建时间降序
func (s *MessageService) ListForCustomer(tenantID uint, customerUID string, params *pagination.CursorParams) ([]*models.Message, *pagination.CursorPageInfo, error) {
	var customer models.Customer
	err := s.db.Where("tenant_id = ? AND uid = ? AND removed = ?", tenantID, customerUID, false).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.NewNotFound("客户不存在")
		}
		return nil, nil, err
	}

	var total int64
	if err := s.db.Model(&models.Message{}).Where("sender_id = ?", customer.ID).Count(&total).Error; err != nil {
		return nil, nil, err
	}

	query := s.db.Where("sender_id = ?", customer.ID)
	if params.Cursor != "" {
		var anchor models.Message
		err := s.db.Where("tenant_id = ? AND uid = ? AND sender_id = ?", tenantID, params.Cursor, customer.ID).
			First(&anchor).Error
		if err == nil {
			query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
				anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
		}
	}

	var messages []*models.Message
	err = query.Order("created_at DESC, id DESC").Limit(params.Limit + 1).Find(&messages).Error
	if err != nil {
		return nil, nil, err
	}

	hasMore := false
	if len(messages) > params.Limit {
		hasMore = true
		messages = messages[:params.Limit]
	}

	if err := s.decorate(messages); err != nil {
		return nil, nil, err
	}

	return messages, pagination.NewCursorPageInfo(params, total, hasMore), nil
}

// ListBetweenCustomers 双方在全部共享会话内互发的消息，按创建时间降序
func (s *MessageService) ListBetweenCustomers(tenantID uint, email1, email2 string, params *pagination.CursorParams) ([]*models.Message, *pagination.CursorPageInfo, error) {
	a, err := s.findCustomerByEmail(tenantID, email1)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.findCustomerByEmail(tenantID, email2)
	if err != nil {
		return nil, nil, err
	}

	base := func() *gorm.DB {
		shared := s.db.Table("channel_members cm1").
			Select("cm1.channel_id").
			Joins("JOIN channel_members cm2 ON cm2.channel_id = cm1.channel_id").
			Where("cm1.customer_id = ? AND cm2.customer_id = ?", a.ID, b.ID)

		return s.db.Model(&models.Message{}).
			Where("tenant_id = ? AND sender_id IN ? AND channel_id IN (?)", tenantID, []uint{a.ID, b.ID}, shared)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, nil, err
	}

	query := base()
	if params.Cursor != "" {
		var anchor models.Message
		err := s.db.Where("tenant_id = ? AND uid = ?", tenantID, params.Cursor).First(&anchor).Error
		if err == nil {
			query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
				anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
		}
	}

	var messages []*models.Message
	err = query.Order("created_at DESC, id DESC").Limit(params.Limit + 1).Find(&messages).Error
	if err != nil {
		return nil, nil, err
	}

	hasMore := false
	if len(messages) > params.Limit {
		hasMore = true
		messages = messages[:params.Limit]
	}

	if err := s.decorate(messages); err != nil {
		return nil, nil, err
	}

	return messages, pagination.NewCursorPageInfo(params, total, hasMore), nil
}

// ========== 内部辅助 ==========

// findCustomerByEmail 邮箱解析失败按未找到处理
func (s *MessageService) findCustomerByEmail(tenantID uint, email string) (*models.Customer, error) {
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

// decorate 批量填充消息的会话与发送者外部标识
func (s *MessageService) decorate(messages []*models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	channelIDs := make([]uint, 0, len(messages))
	senderIDs := make([]uint, 0, len(messages))
	for _, m := range messages {
		channelIDs = append(channelIDs, m.ChannelID)
		senderIDs = append(senderIDs, m.SenderID)
	}

	var channels []models.Channel
	if err := s.db.Where("id IN ?", channelIDs).Find(&channels).Error; err != nil {
		return err
	}
	channelUIDs := make(map[uint]string, len(channels))
	for _, c := range channels {
		channelUIDs[c.ID] = c.UID
	}

	var senders []models.Customer
	if err := s.db.Where("id IN ?", senderIDs).Find(&senders).Error; err != nil {
		return err
	}
	senderUIDs := make(map[uint]string, len(senders))
	for _, c := range senders {
		senderUIDs[c.ID] = c.UID
	}

	for _, m := range messages {
		m.ChannelUID = channelUIDs[m.ChannelID]
		m.SenderUID = senderUIDs[m.SenderID]
	}
	return nil
}
