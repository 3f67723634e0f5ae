package services

import (
	"testing"
	"time"

	apperrors "huddle/pkg/errors"
	"huddle/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerCreate(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service := NewCustomerService(db)

	customer, err := service.Create(tenant.ID, "Alice", "alice@example.com", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, customer.UID)
	assert.Equal(t, "Alice", customer.Name)

	// 同租户邮箱重复
	_, err = service.Create(tenant.ID, "Alice2", "alice@example.com", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	// 不同租户可以复用同一邮箱
	other := createTestTenant(t, db, "租户B")
	_, err = service.Create(other.ID, "Alice", "alice@example.com", nil)
	assert.NoError(t, err)
}

func TestCustomerCreateValidation(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service := NewCustomerService(db)

	_, err := service.Create(tenant.ID, "  ", "alice@example.com", nil)
	assert.True(t, apperrors.IsValidation(err))

	_, err = service.Create(tenant.ID, "Alice", "not-an-email", nil)
	assert.True(t, apperrors.IsValidation(err))

	_, err = service.Create(tenant.ID, "Alice", "a@b", nil)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCustomerTenantIsolation(t *testing.T) {
	db := setupTestDB(t)
	tenantA := createTestTenant(t, db, "租户A")
	tenantB := createTestTenant(t, db, "租户B")
	service := NewCustomerService(db)

	customer, err := service.Create(tenantA.ID, "Alice", "alice@example.com", nil)
	require.NoError(t, err)

	// 跨租户按UID访问与不存在不可区分
	_, err = service.GetByUID(tenantB.ID, customer.UID)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = service.GetByEmail(tenantB.ID, "alice@example.com")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCustomerRemove(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service := NewCustomerService(db)

	customer, err := service.Create(tenant.ID, "Alice", "alice@example.com", nil)
	require.NoError(t, err)

	require.NoError(t, service.Remove(tenant.ID, customer.UID))

	_, err = service.GetByUID(tenant.ID, customer.UID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = service.GetByEmail(tenant.ID, "alice@example.com")
	assert.True(t, apperrors.IsNotFound(err))

	// 重复移除按未找到处理
	err = service.Remove(tenant.ID, customer.UID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCustomerListPagination(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service := NewCustomerService(db)

	// 25个客户，创建时间依次递增
	for i := 0; i < 25; i++ {
		createTestCustomer(t, db, tenant.ID, "Customer", testEmail(i), testBase.Add(time.Duration(i)*time.Minute))
	}

	// 第一页：最新的10个
	page1, info, err := service.List(tenant.ID, pagination.NewCursorParams(10, ""))
	require.NoError(t, err)
	require.Len(t, page1, 10)
	assert.True(t, info.HasMore)
	assert.Equal(t, int64(25), info.Total)
	assert.Equal(t, testEmail(24), page1[0].Email)
	assert.Equal(t, testEmail(15), page1[9].Email)

	// 第二页：游标为上一页最后一条的UID
	page2, info, err := service.List(tenant.ID, pagination.NewCursorParams(10, page1[9].UID))
	require.NoError(t, err)
	require.Len(t, page2, 10)
	assert.True(t, info.HasMore)
	assert.Equal(t, int64(25), info.Total)
	assert.Equal(t, testEmail(14), page2[0].Email)

	// 第三页：剩余5个
	page3, info, err := service.List(tenant.ID, pagination.NewCursorParams(10, page2[9].UID))
	require.NoError(t, err)
	require.Len(t, page3, 5)
	assert.False(t, info.HasMore)
	assert.Equal(t, int64(25), info.Total)
	assert.Equal(t, testEmail(0), page3[4].Email)
}

func TestCustomerListIgnoresBadCursor(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service := NewCustomerService(db)

	for i := 0; i < 3; i++ {
		createTestCustomer(t, db, tenant.ID, "Customer", testEmail(i), testBase.Add(time.Duration(i)*time.Minute))
	}

	// 无法解析的游标静默忽略，返回首页
	customers, info, err := service.List(tenant.ID, pagination.NewCursorParams(10, "no-such-uid"))
	require.NoError(t, err)
	assert.Len(t, customers, 3)
	assert.False(t, info.HasMore)
}

func TestCustomerListExcludesRemoved(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service := NewCustomerService(db)

	keep := createTestCustomer(t, db, tenant.ID, "Keep", testEmail(0), testBase)
	gone := createTestCustomer(t, db, tenant.ID, "Gone", testEmail(1), testBase.Add(time.Minute))
	require.NoError(t, service.Remove(tenant.ID, gone.UID))

	customers, info, err := service.List(tenant.ID, pagination.NewCursorParams(10, ""))
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, keep.UID, customers[0].UID)
	assert.Equal(t, int64(1), info.Total)
}

func TestCustomerListActive(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service := NewCustomerService(db)
	channels := NewChannelService(db)

	a := createTestCustomer(t, db, tenant.ID, "A", testEmail(0), testBase)
	b := createTestCustomer(t, db, tenant.ID, "B", testEmail(1), testBase)
	c := createTestCustomer(t, db, tenant.ID, "C", testEmail(2), testBase)
	// d从未发言
	createTestCustomer(t, db, tenant.ID, "D", testEmail(3), testBase)

	channel, err := channels.CreateGeneral(tenant.ID, []string{a.UID, b.UID, c.UID})
	require.NoError(t, err)

	createTestMessage(t, db, tenant.ID, channel.ID, a.ID, "hi", testBase.Add(1*time.Minute))
	createTestMessage(t, db, tenant.ID, channel.ID, b.ID, "hey", testBase.Add(3*time.Minute))
	createTestMessage(t, db, tenant.ID, channel.ID, a.ID, "again", testBase.Add(5*time.Minute))
	createTestMessage(t, db, tenant.ID, channel.ID, c.ID, "yo", testBase.Add(2*time.Minute))

	active, info, err := service.ListActive(tenant.ID, pagination.NewCursorParams(10, ""))
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, int64(3), info.Total)

	// 按最近发送时间降序：a(5m) > b(3m) > c(2m)，d不出现
	assert.Equal(t, a.UID, active[0].UID)
	assert.Equal(t, b.UID, active[1].UID)
	assert.Equal(t, c.UID, active[2].UID)
	assert.True(t, active[0].LastMessageAt.After(active[1].LastMessageAt))
	assert.True(t, active[1].LastMessageAt.After(active[2].LastMessageAt))
}

func TestCustomerListActiveCursor(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service := NewCustomerService(db)
	channels := NewChannelService(db)

	// 5个客户各发一条消息，时间依次递增
	members := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		customer := createTestCustomer(t, db, tenant.ID, "Customer", testEmail(i), testBase)
		members = append(members, customer.UID)
	}
	channel, err := channels.CreateGeneral(tenant.ID, members)
	require.NoError(t, err)

	for i, member := range channel.Members {
		createTestMessage(t, db, tenant.ID, channel.ID, member.ID, "m", testBase.Add(time.Duration(i)*time.Minute))
	}

	page1, info, err := service.ListActive(tenant.ID, pagination.NewCursorParams(2, ""))
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.True(t, info.HasMore)
	assert.Equal(t, int64(5), info.Total)

	page2, info, err := service.ListActive(tenant.ID, pagination.NewCursorParams(2, page1[1].UID))
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.True(t, info.HasMore)

	page3, info, err := service.ListActive(tenant.ID, pagination.NewCursorParams(2, page2[1].UID))
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.False(t, info.HasMore)

	// 三页合起来覆盖5个不同客户，活跃时间整体降序
	seen := map[string]bool{}
	all := append(append(append([]*CustomerActivity{}, page1...), page2...), page3...)
	for i, item := range all {
		seen[item.UID] = true
		if i > 0 {
			assert.False(t, item.LastMessageAt.After(all[i-1].LastMessageAt))
		}
	}
	assert.Len(t, seen, 5)
}

func TestCustomerListActiveForSender(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service := NewCustomerService(db)
	channels := NewChannelService(db)

	sender := createTestCustomer(t, db, tenant.ID, "Sender", testEmail(0), testBase)
	b := createTestCustomer(t, db, tenant.ID, "B", testEmail(1), testBase)
	c := createTestCustomer(t, db, tenant.ID, "C", testEmail(2), testBase)
	// d与sender没有共享会话
	d := createTestCustomer(t, db, tenant.ID, "D", testEmail(3), testBase)

	chSB, err := channels.CreateGeneral(tenant.ID, []string{sender.UID, b.UID})
	require.NoError(t, err)
	chSC, err := channels.CreateGeneral(tenant.ID, []string{sender.UID, c.UID})
	require.NoError(t, err)
	chCD, err := channels.CreateGeneral(tenant.ID, []string{c.UID, d.UID})
	require.NoError(t, err)

	createTestMessage(t, db, tenant.ID, chSB.ID, sender.ID, "to b", testBase.Add(1*time.Minute))
	createTestMessage(t, db, tenant.ID, chSB.ID, b.ID, "from b", testBase.Add(4*time.Minute))
	createTestMessage(t, db, tenant.ID, chSC.ID, c.ID, "from c", testBase.Add(2*time.Minute))
	// d的活跃发生在与sender无关的会话里
	createTestMessage(t, db, tenant.ID, chCD.ID, d.ID, "elsewhere", testBase.Add(9*time.Minute))

	active, info, err := service.ListActiveForSender(tenant.ID, sender.Email, pagination.NewCursorParams(10, ""))
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, int64(2), info.Total)

	// b的往来时间(4m)晚于c(2m)；d不出现
	assert.Equal(t, b.UID, active[0].UID)
	assert.Equal(t, c.UID, active[1].UID)
}

func TestCustomerListActiveForSenderUnknownEmail(t *testing.T) {
	db := setupTestDB(t)
	tenant := createTestTenant(t, db, "租户A")
	service := NewCustomerService(db)

	// 发送者邮箱无法解析时返回空页而非错误
	active, info, err := service.ListActiveForSender(tenant.ID, "ghost@example.com", pagination.NewCursorParams(10, ""))
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, int64(0), info.Total)
	assert.False(t, info.HasMore)
}
