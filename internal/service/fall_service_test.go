package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-care/internal/domain"
	"wisefido-care/internal/notifier"
	"wisefido-care/internal/repository"
	"wisefido-care/internal/stream"
)

// fakeSender 记录发送目标，可按号码注入失败
type fakeSender struct {
	mu       sync.Mutex
	sent     []string
	failFor  map[string]bool
	messages []string
}

func (f *fakeSender) Send(_ context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failFor[phone] {
		return errors.New("gateway unreachable")
	}
	f.sent = append(f.sent, phone)
	f.messages = append(f.messages, message)
	return nil
}

func setupFall(t *testing.T) (*repository.MemoryUsersRepo, *repository.MemoryFallEventsRepo, *fakeSender, FallService) {
	t.Helper()

	usersRepo := repository.NewMemoryUsersRepo()
	eventsRepo := repository.NewMemoryFallEventsRepo()
	sender := &fakeSender{failFor: map[string]bool{}}

	n := notifier.NewNotifier(sender, time.Second, zap.NewNop())
	publisher := stream.NewPublisher(nil, zap.NewNop())
	svc := NewFallService(usersRepo, eventsRepo, n, publisher, zap.NewNop())

	seedUser(t, usersRepo, "nurse-1", "Nurse Joy", domain.RoleNurse, "+15005550006")
	seedUser(t, usersRepo, "nurse-2", "Nurse Chapel", domain.RoleNurse, "+15005550007")
	seedUser(t, usersRepo, "nurse-3", "Nurse Silent", domain.RoleNurse, "")
	seedUser(t, usersRepo, "patient-1", "Alice", domain.RolePatient, "")

	ctx := context.Background()
	require.NoError(t, usersRepo.AssignPatient(ctx, "nurse-1", "patient-1"))
	require.NoError(t, usersRepo.AssignPatient(ctx, "nurse-2", "patient-1"))
	require.NoError(t, usersRepo.AssignPatient(ctx, "nurse-3", "patient-1"))

	return usersRepo, eventsRepo, sender, svc
}

func TestReportFall_NotifiesAndResets(t *testing.T) {
	usersRepo, eventsRepo, sender, svc := setupFall(t)
	ctx := context.Background()

	before := time.Now()
	summary, err := svc.ReportFall(ctx, "patient-1", domain.FallSourceManual)
	require.NoError(t, err)

	// 返回时已复位，last_fall_at 保留
	assert.False(t, summary.FallActive)
	require.NotNil(t, summary.LastFallAt)
	assert.False(t, summary.LastFallAt.Before(before))

	// 有号码的两位护士都收到，无号码的被跳过
	assert.ElementsMatch(t, []string{"+15005550006", "+15005550007"}, sender.sent)
	for _, msg := range sender.messages {
		assert.Equal(t, "URGENT: Patient Alice has fallen. Please check immediately.", msg)
	}

	// 激活窗口已关闭
	active, err := usersRepo.ListActiveFalls(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	// 审计记录
	events, total, err := eventsRepo.ListFallEvents(ctx, "patient-1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, domain.FallSourceManual, events[0].Source)
	assert.Equal(t, 2, events[0].NotifyAttempted)
	assert.Equal(t, 2, events[0].NotifyDelivered)
	assert.Equal(t, 0, events[0].NotifyFailed)
}

func TestReportFall_PartialDeliveryFailure(t *testing.T) {
	_, eventsRepo, sender, svc := setupFall(t)
	ctx := context.Background()

	sender.failFor["+15005550007"] = true

	// 单个通道失败不会让上报失败
	summary, err := svc.ReportFall(ctx, "patient-1", domain.FallSourceManual)
	require.NoError(t, err)
	assert.False(t, summary.FallActive)

	events, _, err := eventsRepo.ListFallEvents(ctx, "patient-1", 1, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].NotifyAttempted)
	assert.Equal(t, 1, events[0].NotifyDelivered)
	assert.Equal(t, 1, events[0].NotifyFailed)
}

func TestReportFall_NoNurses(t *testing.T) {
	usersRepo := repository.NewMemoryUsersRepo()
	eventsRepo := repository.NewMemoryFallEventsRepo()
	sender := &fakeSender{failFor: map[string]bool{}}
	n := notifier.NewNotifier(sender, time.Second, zap.NewNop())
	svc := NewFallService(usersRepo, eventsRepo, n, stream.NewPublisher(nil, zap.NewNop()), zap.NewNop())

	seedUser(t, usersRepo, "patient-1", "Alice", domain.RolePatient, "")

	summary, err := svc.ReportFall(context.Background(), "patient-1", domain.FallSourceDevice)
	require.NoError(t, err)
	assert.False(t, summary.FallActive)
	assert.Empty(t, sender.sent)

	events, _, err := eventsRepo.ListFallEvents(context.Background(), "patient-1", 1, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 0, events[0].NotifyAttempted)
	assert.Equal(t, domain.FallSourceDevice, events[0].Source)
}

func TestReportFall_UnknownPatient(t *testing.T) {
	_, _, _, svc := setupFall(t)

	_, err := svc.ReportFall(context.Background(), "ghost", domain.FallSourceManual)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReportFall_SurvivesCancelledContext(t *testing.T) {
	usersRepo, eventsRepo, _, svc := setupFall(t)

	// 调用方在上报后立即放弃请求：复位与审计仍然完成
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := svc.ReportFall(ctx, "patient-1", domain.FallSourceManual)
	require.NoError(t, err)
	assert.False(t, summary.FallActive)

	active, err := usersRepo.ListActiveFalls(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	_, total, err := eventsRepo.ListFallEvents(context.Background(), "patient-1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestResetFallStatus(t *testing.T) {
	usersRepo, _, _, svc := setupFall(t)
	ctx := context.Background()

	_, err := usersRepo.SetFallStatus(ctx, "patient-1", true, time.Now())
	require.NoError(t, err)

	summary, err := svc.ResetFallStatus(ctx, "patient-1")
	require.NoError(t, err)
	assert.False(t, summary.FallActive)
	assert.NotNil(t, summary.LastFallAt)

	// 幂等
	summary, err = svc.ResetFallStatus(ctx, "patient-1")
	require.NoError(t, err)
	assert.False(t, summary.FallActive)
}

func TestGetActiveFalls(t *testing.T) {
	usersRepo, _, _, svc := setupFall(t)
	ctx := context.Background()

	active, err := svc.GetActiveFalls(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = usersRepo.SetFallStatus(ctx, "patient-1", true, time.Now())
	require.NoError(t, err)

	active, err = svc.GetActiveFalls(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "patient-1", active[0].UserID)
	assert.True(t, active[0].FallActive)
}

func TestListFallEvents_Paging(t *testing.T) {
	_, _, _, svc := setupFall(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.ReportFall(ctx, "patient-1", domain.FallSourceManual)
		require.NoError(t, err)
	}

	events, total, err := svc.ListFallEvents(ctx, "patient-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, events, 2)

	events, total, err = svc.ListFallEvents(ctx, "patient-1", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, events, 1)
}
