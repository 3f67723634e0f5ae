package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"huddle/internal/models"
	apperrors "huddle/pkg/errors"
	"huddle/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChannelService 会话解析服务
// 负责会话的创建去重、成员集合匹配与各类列表查询
type ChannelService struct {
	db *gorm.DB
}

func NewChannelService(db *gorm.DB) *ChannelService {
	return &ChannelService{db: db}
}

// RecipientGroup 按对端客户分组的会话集合
// 超过两人的会话会同时出现在多个对端分组下
type RecipientGroup struct {
	Recipient      models.Customer   `json:"recipient"`
	Channels       []*models.Channel `json:"channels"`
	LatestActivity time.Time         `json:"latest_activity"`
}

// ========== 创建 ==========

// CreateGeneral 创建general会话
// 同一成员集合（顺序无关、重复ID合并）在租户内至多存在一个general会话
func (s *ChannelService) CreateGeneral(tenantID uint, customerUIDs []string) (*models.Channel, error) {
	members, err := s.resolveMembers(tenantID, customerUIDs)
	if err != nil {
		return nil, err
	}

	key := memberKey(members)

	var channel *models.Channel
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 成员集合精确匹配检查
		var count int64
		if err := tx.Model(&models.Channel{}).
			Where("tenant_id = ? AND type = ? AND member_key = ?", tenantID, models.ChannelTypeGeneral, key).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.NewConflict("general会话已存在")
		}

		created, err := s.createWithMembers(tx, tenantID, models.ChannelTypeGeneral, models.GeneralChannelName, key, members)
		if err != nil {
			return err
		}
		channel = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	channel.Members = members
	return channel, nil
}

// CreateCustom 创建custom会话
// 名称在租户内已存在时直接返回既有会话（按名称幂等），即使请求的成员集合不同
func (s *ChannelService) CreateCustom(tenantID uint, name string, customerUIDs []string) (*models.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidation("会话名称不能为空")
	}

	members, err := s.resolveMembers(tenantID, customerUIDs)
	if err != nil {
		return nil, err
	}

	var channel *models.Channel
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Channel
		err := tx.Where("tenant_id = ? AND type = ? AND name = ?", tenantID, models.ChannelTypeCustom, name).
			First(&existing).Error
		if err == nil {
			channel = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		created, err := s.createWithMembers(tx, tenantID, models.ChannelTypeCustom, name, memberKey(members), members)
		if err != nil {
			return err
		}
		channel = created
		return nil
	})
	if err != nil {
		// 并发创建同名会话时由唯一索引裁决，败者取回先提交者的会话
		if apperrors.IsConflict(err) {
			var existing models.Channel
			ferr := s.db.Where("tenant_id = ? AND type = ? AND name = ?", tenantID, models.ChannelTypeCustom, name).
				First(&existing).Error
			if ferr != nil {
				return nil, err
			}
			channel = &existing
		} else {
			return nil, err
		}
	}

	channelMembers, err := s.MembersOf(channel.ID)
	if err != nil {
		return nil, err
	}
	channel.Members = channelMembers
	return channel, nil
}

// createWithMembers 在事务内创建会话并挂接成员
func (s *ChannelService) createWithMembers(tx *gorm.DB, tenantID uint, channelType, name, key string, members []models.Customer) (*models.Channel, error) {
	channel := &models.Channel{
		TenantID:      tenantID,
		UID:           uuid.NewString(),
		Type:          channelType,
		Name:          name,
		MemberKey:     key,
		LastMessageAt: time.Now(),
	}

	if err := tx.Create(channel).Error; err != nil {
		// 并发创建同一成员集合或同名会话时由唯一索引裁决，败者收到冲突
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.NewConflict("会话已存在")
		}
		return nil, err
	}

	for _, member := range members {
		cm := &models.ChannelMember{
			ChannelID:  channel.ID,
			CustomerID: member.ID,
		}
		if err := tx.Create(cm).Error; err != nil {
			return nil, err
		}
	}

	return channel, nil
}

// ========== 查询 ==========

// GetByUID 根据外部标识获取会话（含成员）
func (s *ChannelService) GetByUID(tenantID uint, uid string) (*models.Channel, error) {
	var channel models.Channel
	err := s.db.Where("tenant_id = ? AND uid = ?", tenantID, uid).First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("会话不存在")
		}
		return nil, err
	}

	members, err := s.MembersOf(channel.ID)
	if err != nil {
		return nil, err
	}
	channel.Members = members
	return &channel, nil
}

// FindGeneralByMembers 按成员集合查找general会话
func (s *ChannelService) FindGeneralByMembers(tenantID uint, members []models.Customer) (*models.Channel, error) {
	var channel models.Channel
	err := s.db.Where("tenant_id = ? AND type = ? AND member_key = ?",
		tenantID, models.ChannelTypeGeneral, memberKey(members)).First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("会话不存在")
		}
		return nil, err
	}
	return &channel, nil
}

// List 租户会话列表，按活动时间降序
func (s *ChannelService) List(tenantID uint, params *pagination.CursorParams) ([]*models.Channel, *pagination.CursorPageInfo, error) {
	var total int64
	if err := s.db.Model(&models.Channel{}).Where("tenant_id = ?", tenantID).Count(&total).Error; err != nil {
		return nil, nil, err
	}

	query := s.db.Where("tenant_id = ?", tenantID)
	if params.Cursor != "" {
		var anchor models.Channel
		err := s.db.Where("tenant_id = ? AND uid = ?", tenantID, params.Cursor).First(&anchor).Error
		if err == nil {
			query = query.Where("last_message_at < ? OR (last_message_at = ? AND id < ?)",
				anchor.LastMessageAt, anchor.LastMessageAt, anchor.ID)
		}
	}

	var channels []*models.Channel
	err := query.Order("last_message_at DESC, id DESC").Limit(params.Limit + 1).Find(&channels).Error
	if err != nil {
		return nil, nil, err
	}

	hasMore := false
	if len(channels) > params.Limit {
		hasMore = true
		channels = channels[:params.Limit]
	}

	return channels, pagination.NewCursorPageInfo(params, total, hasMore), nil
}

// ListForCustomer 客户参与的全部会话，按活动时间降序
// 与其他列表不同，此接口按约定返回完整结果集，不做游标分页
func (s *ChannelService) ListForCustomer(tenantID uint, customerUID string) ([]*models.Channel, error) {
	var customer models.Customer
	err := s.db.Where("tenant_id = ? AND uid = ? AND removed = ?", tenantID, customerUID, false).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("客户不存在")
		}
		return nil, err
	}

	return s.channelsOf(tenantID, customer.ID)
}

// ListGroupedByRecipient 按会话对端客户分组
// 分组活动时间取该对端名下会话活动时间的最大值，分组按活动时间降序
func (s *ChannelService) ListGroupedByRecipient(tenantID uint, requesterEmail string) ([]*RecipientGroup, error) {
	var requester models.Customer
	err := s.db.Where("tenant_id = ? AND email = ? AND removed = ?", tenantID, requesterEmail, false).First(&requester).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("客户不存在")
		}
		return nil, err
	}

	channels, err := s.channelsOf(tenantID, requester.ID)
	if err != nil {
		return nil, err
	}

	groupIndex := make(map[uint]*RecipientGroup)
	order := make([]uint, 0)

	for _, channel := range channels {
		members, err := s.MembersOf(channel.ID)
		if err != nil {
			return nil, err
		}
		channel.Members = members

		for _, member := range members {
			if member.ID == requester.ID {
				continue
			}

			group, ok := groupIndex[member.ID]
			if !ok {
				group = &RecipientGroup{Recipient: member}
				groupIndex[member.ID] = group
				order = append(order, member.ID)
			}
			group.Channels = append(group.Channels, channel)
			if channel.LastMessageAt.After(group.LatestActivity) {
				group.LatestActivity = channel.LastMessageAt
			}
		}
	}

	groups := make([]*RecipientGroup, 0, len(order))
	for _, id := range order {
		groups = append(groups, groupIndex[id])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].LatestActivity.After(groups[j].LatestActivity)
	})

	return groups, nil
}

// MembersOf 会话成员列表（显式查询，不做关联懒加载）
// 已移除的客户不再对外展示为成员
func (s *ChannelService) MembersOf(channelID uint) ([]models.Customer, error) {
	var members []models.Customer
	err := s.db.Table("customers").
		Select("customers.*").
		Joins("JOIN channel_members ON channel_members.customer_id = customers.id").
		Where("channel_members.channel_id = ? AND customers.removed = ?", channelID, false).
		Order("customers.id ASC").
		Find(&members).Error
	return members, err
}

// IsMember 客户是否为会话当前成员
func (s *ChannelService) IsMember(channelID, customerID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.ChannelMember{}).
		Where("channel_id = ? AND customer_id = ?", channelID, customerID).
		Count(&count).Error
	return count > 0, err
}

// ========== 内部辅助 ==========

// channelsOf 客户参与的会话，按活动时间降序
func (s *ChannelService) channelsOf(tenantID, customerID uint) ([]*models.Channel, error) {
	var channels []*models.Channel
	err := s.db.Table("channels").
		Select("channels.*").
		Joins("JOIN channel_members ON channel_members.channel_id = channels.id").
		Where("channels.tenant_id = ? AND channel_members.customer_id = ?", tenantID, customerID).
		Order("channels.last_message_at DESC, channels.id DESC").
		Find(&channels).Error
	return channels, err
}

// resolveMembers 解析成员UID集合：去重、校验归属与数量
func (s *ChannelService) resolveMembers(tenantID uint, customerUIDs []string) ([]models.Customer, error) {
	// 去重，保留首次出现顺序
	seen := make(map[string]bool)
	uids := make([]string, 0, len(customerUIDs))
	for _, uid := range customerUIDs {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		uids = append(uids, uid)
	}

	if len(uids) < models.MinChannelMembers || len(uids) > models.MaxChannelMembers {
		return nil, apperrors.NewValidation(
			fmt.Sprintf("会话成员数量必须在%d-%d之间", models.MinChannelMembers, models.MaxChannelMembers))
	}

	var customers []models.Customer
	err := s.db.Where("tenant_id = ? AND uid IN ? AND removed = ?", tenantID, uids, false).Find(&customers).Error
	if err != nil {
		return nil, err
	}

	if len(customers) != len(uids) {
		found := make(map[string]bool, len(customers))
		for _, c := range customers {
			found[c.UID] = true
		}
		missing := make([]string, 0)
		for _, uid := range uids {
			if !found[uid] {
				missing = append(missing, uid)
			}
		}
		return nil, apperrors.NewValidation("以下客户不存在: " + strings.Join(missing, ", "))
	}

	return customers, nil
}

// memberKey 成员集合签名：内部ID升序后以"-"连接
// 两个集合相等当且仅当签名完全一致
func memberKey(members []models.Customer) string {
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(uint64(id), 10))
	}
	return strings.Join(parts, "-")
}
