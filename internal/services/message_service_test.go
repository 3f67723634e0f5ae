package services

import (
	"testing"
	"time"

	"huddle/internal/models"
	apperrors "huddle/pkg/errors"
	"huddle/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestMessageService 测试用消息服务，不接Redis
func newTestMessageService(db *gorm.DB) (*MessageService, *ChannelService) {
	channels := NewChannelService(db)
	notifier := NewNotificationService(nil)
	return NewMessageService(db, channels, notifier), channels
}

func TestMessageSend(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service, channels := newTestMessageService(db)

	a := createTestCustomer(t, db, tenant.ID, "A", testEmail(0), testBase)
	b := createTestCustomer(t, db, tenant.ID, "B", testEmail(1), testBase)
	channel, err := channels.CreateGeneral(tenant.ID, []string{a.UID, b.UID})
	require.NoError(t, err)

	message, err := service.Send(tenant.ID, channel.UID, a.UID, models.MessageTypeText, "hello", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, message.UID)
	assert.Equal(t, channel.UID, message.ChannelUID)
	assert.Equal(t, a.UID, message.SenderUID)

	// 会话活动时间随消息创建同步推进
	updated, err := channels.GetByUID(tenant.ID, channel.UID)
	require.NoError(t, err)
	assert.WithinDuration(t, message.CreatedAt, updated.LastMessageAt, time.Second)
}

func TestMessageSendValidation(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service, channels := newTestMessageService(db)

	a := createTestCustomer(t, db, tenant.ID, "A", testEmail(0), testBase)
	b := createTestCustomer(t, db, tenant.ID, "B", testEmail(1), testBase)
	outsider := createTestCustomer(t, db, tenant.ID, "Outsider", testEmail(2), testBase)
	channel, err := channels.CreateGeneral(tenant.ID, []string{a.UID, b.UID})
	require.NoError(t, err)

	// 会话/发送者缺失按请求参数错误处理，而非未找到
	_, err = service.Send(tenant.ID, "no-such-channel", a.UID, models.MessageTypeText, "hi", nil)
	assert.True(t, apperrors.IsValidation(err))

	_, err = service.Send(tenant.ID, channel.UID, "no-such-sender", models.MessageTypeText, "hi", nil)
	assert.True(t, apperrors.IsValidation(err))

	// 非成员不能发言，且不产生任何消息
	_, err = service.Send(tenant.ID, channel.UID, outsider.UID, models.MessageTypeText, "hi", nil)
	assert.True(t, apperrors.IsValidation(err))

	_, err = service.Send(tenant.ID, channel.UID, a.UID, "video", "hi", nil)
	assert.True(t, apperrors.IsValidation(err))

	_, err = service.Send(tenant.ID, channel.UID, a.UID, models.MessageTypeText, "   ", nil)
	assert.True(t, apperrors.IsValidation(err))

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestMessageSendTenantIsolation(t *testing.T) {
	db := setupTestDB(t)
	tenantA := createTestTenant(t, db, "租户A")
	tenantB := createTestTenant(t, db, "租户B")
	service, channels := newTestMessageService(db)

	a := createTestCustomer(t, db, tenantA.ID, "A", testEmail(0), testBase)
	b := createTestCustomer(t, db, tenantA.ID, "B", testEmail(1), testBase)
	channel, err := channels.CreateGeneral(tenantA.ID, []string{a.UID, b.UID})
	require.NoError(t, err)

	// 拿着别的租户凭证访问，表现与会话不存在一致
	_, err = service.Send(tenantB.ID, channel.UID, a.UID, models.MessageTypeText, "hi", nil)
	assert.True(t, apperrors.IsValidation(err))
}

func TestMessageListForChannelAscending(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service, channels := newTestMessageService(db)

	a := createTestCustomer(t, db, tenant.ID, "A", testEmail(0), testBase)
	b := createTestCustomer(t, db, tenant.ID, "B", testEmail(1), testBase)
	channel, err := channels.CreateGeneral(tenant.ID, []string{a.UID, b.UID})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		createTestMessage(t, db, tenant.ID, channel.ID, a.ID, "m", testBase.Add(time.Duration(i)*time.Minute))
	}

	// 会话内从头读：升序
	page1, info, err := service.ListForChannel(tenant.ID, channel.UID, pagination.NewCursorParams(2, ""))
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.True(t, info.HasMore)
	assert.Equal(t, int64(5), info.Total)
	assert.True(t, page1[0].CreatedAt.Before(page1[1].CreatedAt))

	page2, info, err := service.ListForChannel(tenant.ID, channel.UID, pagination.NewCursorParams(2, page1[1].UID))
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.True(t, info.HasMore)
	assert.True(t, page2[0].CreatedAt.After(page1[1].CreatedAt))

	page3, info, err := service.ListForChannel(tenant.ID, channel.UID, pagination.NewCursorParams(2, page2[1].UID))
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.False(t, info.HasMore)

	// 未知会话按未找到处理
	_, _, err = service.ListForChannel(tenant.ID, "no-such-channel", pagination.NewCursorParams(2, ""))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMessageListForCustomerAcrossChannels(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service, channels := newTestMessageService(db)

	a := createTestCustomer(t, db, tenant.ID, "A", testEmail(0), testBase)
	b := createTestCustomer(t, db, tenant.ID, "B", testEmail(1), testBase)
	c := createTestCustomer(t, db, tenant.ID, "C", testEmail(2), testBase)

	ch1, err := channels.CreateGeneral(tenant.ID, []string{a.UID, b.UID})
	require.NoError(t, err)
	ch2, err := channels.CreateGeneral(tenant.ID, []string{a.UID, c.UID})
	require.NoError(t, err)

	// a在两个会话里共发7条
	for i := 0; i < 3; i++ {
		createTestMessage(t, db, tenant.ID, ch1.ID, a.ID, "m", testBase.Add(time.Duration(i)*time.Minute))
	}
	for i := 3; i < 7; i++ {
		createTestMessage(t, db, tenant.ID, ch2.ID, a.ID, "m", testBase.Add(time.Duration(i)*time.Minute))
	}
	// 别人的消息不计入
	createTestMessage(t, db, tenant.ID, ch1.ID, b.ID, "m", testBase.Add(30*time.Minute))

	messages, info, err := service.ListForCustomer(tenant.ID, a.UID, pagination.NewCursorParams(10, ""))
	require.NoError(t, err)
	require.Len(t, messages, 7)
	assert.Equal(t, int64(7), info.Total)

	// 动态流：降序，且跨会话聚合
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].CreatedAt.After(messages[i-1].CreatedAt))
	}
	assert.Equal(t, ch2.UID, messages[0].ChannelUID)
	assert.Equal(t, a.UID, messages[0].SenderUID)
}

func TestMessageListBetweenCustomers(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service, channels := newTestMessageService(db)

	a := createTestCustomer(t, db, tenant.ID, "A", testEmail(0), testBase)
	b := createTestCustomer(t, db, tenant.ID, "B", testEmail(1), testBase)
	c := createTestCustomer(t, db, tenant.ID, "C", testEmail(2), testBase)

	chAB, err := channels.CreateGeneral(tenant.ID, []string{a.UID, b.UID})
	require.NoError(t, err)
	chABC, err := channels.CreateCustom(tenant.ID, "project", []string{a.UID, b.UID, c.UID})
	require.NoError(t, err)
	chAC, err := channels.CreateGeneral(tenant.ID, []string{a.UID, c.UID})
	require.NoError(t, err)

	createTestMessage(t, db, tenant.ID, chAB.ID, a.ID, "ab-1", testBase.Add(1*time.Minute))
	createTestMessage(t, db, tenant.ID, chAB.ID, b.ID, "ab-2", testBase.Add(2*time.Minute))
	createTestMessage(t, db, tenant.ID, chABC.ID, a.ID, "abc-1", testBase.Add(3*time.Minute))
	// 共享会话内第三人的消息不计入
	createTestMessage(t, db, tenant.ID, chABC.ID, c.ID, "abc-2", testBase.Add(4*time.Minute))
	// a与c的会话b不在其中，不计入
	createTestMessage(t, db, tenant.ID, chAC.ID, a.ID, "ac-1", testBase.Add(5*time.Minute))

	messages, info, err := service.ListBetweenCustomers(tenant.ID, a.Email, b.Email, pagination.NewCursorParams(10, ""))
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, int64(3), info.Total)

	// 降序：abc-1 > ab-2 > ab-1
	assert.Equal(t, "abc-1", messages[0].Content)
	assert.Equal(t, "ab-2", messages[1].Content)
	assert.Equal(t, "ab-1", messages[2].Content)

	// 任一邮箱无法解析按未找到处理
	_, _, err = service.ListBetweenCustomers(tenant.ID, a.Email, "ghost@example.com", pagination.NewCursorParams(10, ""))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMessageSendToCustomer(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service, _ := newTestMessageService(db)

	a := createTestCustomer(t, db, tenant.ID, "A", testEmail(0), testBase)
	b := createTestCustomer(t, db, tenant.ID, "B", testEmail(1), testBase)

	first, err := service.SendToCustomer(tenant.ID, a.Email, b.Email, models.MessageTypeText, "hi", nil)
	require.NoError(t, err)

	// 反向发送复用同一个general会话
	second, err := service.SendToCustomer(tenant.ID, b.Email, a.Email, models.MessageTypeText, "hey", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ChannelUID, second.ChannelUID)

	var channelCount int64
	require.NoError(t, db.Model(&models.Channel{}).Where("tenant_id = ?", tenant.ID).Count(&channelCount).Error)
	assert.Equal(t, int64(1), channelCount)

	var messageCount int64
	require.NoError(t, db.Model(&models.Message{}).Count(&messageCount).Error)
	assert.Equal(t, int64(2), messageCount)

	// 收件人无法解析按未找到处理
	_, err = service.SendToCustomer(tenant.ID, a.Email, "ghost@example.com", models.MessageTypeText, "hi", nil)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMessageSendToCustomerReusesExistingChannel(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service, channels := newTestMessageService(db)

	a := createTestCustomer(t, db, tenant.ID, "A", testEmail(0), testBase)
	b := createTestCustomer(t, db, tenant.ID, "B", testEmail(1), testBase)

	// general会话已由别的请求先行创建
	existing, err := channels.CreateGeneral(tenant.ID, []string{a.UID, b.UID})
	require.NoError(t, err)

	message, err := service.SendToCustomer(tenant.ID, a.Email, b.Email, models.MessageTypeText, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, existing.UID, message.ChannelUID)

	// 消息落入既有会话，没有产生新会话
	var channelCount int64
	require.NoError(t, db.Model(&models.Channel{}).Where("tenant_id = ?", tenant.ID).Count(&channelCount).Error)
	assert.Equal(t, int64(1), channelCount)
}
