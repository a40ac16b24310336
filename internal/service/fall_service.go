package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-care/internal/domain"
	"wisefido-care/internal/notifier"
	"wisefido-care/internal/repository"
	"wisefido-care/internal/stream"
)

// FallService 跌倒事件协调服务接口
// 状态机：Normal → FallReported → Normal（自动复位）
// 事件是边沿触发的：持久化记录是 last_fall_at 与 fall_events 审计表，
// fall_active 只在通知扇出窗口内为 true
type FallService interface {
	// ReportFall 上报跌倒：置位 → 扇出通知 → 无条件复位
	// 返回复位后的患者摘要（fallActive 恒为 false）
	ReportFall(ctx context.Context, patientID, source string) (*domain.PatientSummary, error)
	// ResetFallStatus 手动复位（幂等，独立于上报流程）
	ResetFallStatus(ctx context.Context, patientID string) (*domain.PatientSummary, error)
	// GetActiveFalls 当前处于 FallReported 窗口内的患者
	GetActiveFalls(ctx context.Context) ([]domain.PatientSummary, error)
	// ListFallEvents 跌倒事件历史（patientID 为空时全部）
	ListFallEvents(ctx context.Context, patientID string, page, size int) ([]*domain.FallEvent, int, error)
}

// fallService 实现
type fallService struct {
	usersRepo  repository.UsersRepository
	eventsRepo repository.FallEventsRepository
	notifier   *notifier.Notifier
	publisher  *stream.Publisher
	logger     *zap.Logger
}

// NewFallService 创建 FallService 实例
func NewFallService(
	usersRepo repository.UsersRepository,
	eventsRepo repository.FallEventsRepository,
	n *notifier.Notifier,
	publisher *stream.Publisher,
	logger *zap.Logger,
) FallService {
	return &fallService{
		usersRepo:  usersRepo,
		eventsRepo: eventsRepo,
		notifier:   n,
		publisher:  publisher,
		logger:     logger,
	}
}

func (s *fallService) ReportFall(ctx context.Context, patientID, source string) (*domain.PatientSummary, error) {
	now := time.Now()

	// 1. 进入 FallReported：fall_active=true，写入 last_fall_at
	patient, err := s.usersRepo.SetFallStatus(ctx, patientID, true, now)
	if err != nil {
		return nil, err
	}

	// 置位之后的步骤不随请求取消：复位必须执行，
	// 扇出本身有逐收件人超时兜底
	detached := context.WithoutCancel(ctx)

	// 2. 从护士侧读取分配关系并同步扇出通知
	nurses, err := s.usersRepo.ListNursesFor(detached, patientID)
	if err != nil {
		s.logger.Error("Failed to resolve nurses for fall alert",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		nurses = nil
	}
	result := s.notifier.NotifyFall(detached, patient, nurses)

	s.logger.Info("Fall alert fan-out completed",
		zap.String("patient_id", patientID),
		zap.Int("attempted", result.Attempted),
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", result.Failed),
	)

	// 3. 审计记录（失败只记日志，事件生命周期不受影响）
	event := &domain.FallEvent{
		EventID:         uuid.New().String(),
		PatientID:       patientID,
		ReportedAt:      now,
		Source:          source,
		NotifyAttempted: result.Attempted,
		NotifyDelivered: result.Delivered,
		NotifyFailed:    result.Failed,
		CreatedAt:       now,
	}
	if err := s.eventsRepo.CreateFallEvent(detached, event); err != nil {
		s.logger.Error("Failed to record fall event",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
	}
	if err := s.publisher.PublishFallEvent(detached, event); err != nil {
		s.logger.Warn("Failed to publish fall event",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}

	// 4. 无条件回到 Normal：扇出完成即复位
	reset, err := s.usersRepo.SetFallStatus(detached, patientID, false, now)
	if err != nil {
		s.logger.Error("Failed to reset fall status after notification",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return nil, err
	}

	summary := reset.Summary()
	return &summary, nil
}

func (s *fallService) ResetFallStatus(ctx context.Context, patientID string) (*domain.PatientSummary, error) {
	patient, err := s.usersRepo.SetFallStatus(ctx, patientID, false, time.Now())
	if err != nil {
		return nil, err
	}
	summary := patient.Summary()
	return &summary, nil
}

func (s *fallService) GetActiveFalls(ctx context.Context) ([]domain.PatientSummary, error) {
	patients, err := s.usersRepo.ListActiveFalls(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.PatientSummary, 0, len(patients))
	for _, p := range patients {
		summaries = append(summaries, p.Summary())
	}
	return summaries, nil
}

func (s *fallService) ListFallEvents(ctx context.Context, patientID string, page, size int) ([]*domain.FallEvent, int, error) {
	return s.eventsRepo.ListFallEvents(ctx, patientID, page, size)
}
